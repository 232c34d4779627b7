package service

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/iliyamo/storefront-session/internal/model"
	"github.com/iliyamo/storefront-session/internal/repository"
)

// MergeReport says how much anonymous state a merge applied.
type MergeReport struct {
	CartLines int `json:"cart_lines"`
	Favorites int `json:"favorites"`
}

// Reconciler folds a client's anonymous cart and favorites into an
// account.  Cart quantities are summed with what the account already has;
// favorites are a set union.  Everything happens in one transaction, so a
// failure leaves the account untouched.
type Reconciler struct {
	DB        *sql.DB
	Carts     *repository.CartRepo
	Favorites *repository.FavoriteRepo
}

func NewReconciler(db *sql.DB, carts *repository.CartRepo, favs *repository.FavoriteRepo) *Reconciler {
	return &Reconciler{DB: db, Carts: carts, Favorites: favs}
}

// Merge applies state to accountID.  The server cannot detect a resubmitted
// state: discarding it after a successful merge is the client's job.
func (r *Reconciler) Merge(ctx context.Context, accountID uint64, state model.AnonymousState) (MergeReport, error) {
	if err := ValidateAnonymousState(state); err != nil {
		return MergeReport{}, err
	}
	if state.IsEmpty() {
		return MergeReport{}, nil
	}
	favorites := dedupe(state.Favorites)

	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return MergeReport{}, fmt.Errorf("begin merge: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := r.Favorites.MergeTx(ctx, tx, accountID, favorites); err != nil {
		return MergeReport{}, fmt.Errorf("merge favorites: %w", err)
	}
	if err := r.Carts.MergeTx(ctx, tx, accountID, state.Cart); err != nil {
		return MergeReport{}, fmt.Errorf("merge cart: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return MergeReport{}, fmt.Errorf("commit merge: %w", err)
	}
	return MergeReport{CartLines: len(state.Cart), Favorites: len(favorites)}, nil
}

func dedupe(ids []uint64) []uint64 {
	seen := make(map[uint64]struct{}, len(ids))
	out := make([]uint64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
