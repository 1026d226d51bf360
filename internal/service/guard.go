package service

import "sheetlens/internal/model"

// AuthorizeOwner checks that ownerID may read a. Every lookup by id passes
// through it; the repository queries do not filter by owner.
func AuthorizeOwner(a *model.Analysis, ownerID string) error {
	if a == nil {
		return ErrNotFound
	}
	if ownerID == "" {
		return ErrOwnerRequired
	}
	if a.OwnerID != ownerID {
		return ErrForbidden
	}
	return nil
}
