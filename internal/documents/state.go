package documents

import (
	kinds "github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

var (
	// ErrDocumentNotFound indicates missing document.
	ErrDocumentNotFound = kinds.NewError(kinds.ErrNotFound, "documents: document not found")
	// ErrNotDraft indicates posting of a document that left DRAFT.
	ErrNotDraft = kinds.NewError(kinds.ErrConflict, "documents: only draft documents can be posted")
	// ErrDraftNotCancellable indicates cancel on a draft; drafts are deleted instead.
	ErrDraftNotCancellable = kinds.NewError(kinds.ErrConflict, "documents: draft documents have no ledger effect; delete the draft instead")
	// ErrAlreadyCancelled indicates a second cancel.
	ErrAlreadyCancelled = kinds.NewError(kinds.ErrConflict, "documents: document already cancelled")
	// ErrDocumentLocked indicates a locked document.
	ErrDocumentLocked = kinds.NewError(kinds.ErrConflict, "documents: document is locked")
	// ErrNotPosted indicates lock on a document that is not posted.
	ErrNotPosted = kinds.NewError(kinds.ErrConflict, "documents: only posted documents can be locked")
)

// CanPost checks the DRAFT -> POSTED transition.
func (d Document) CanPost() error {
	if d.Status != StatusDraft {
		return ErrNotDraft
	}
	return nil
}

// CanCancel checks the POSTED -> CANCELLED transition.
func (d Document) CanCancel() error {
	switch d.Status {
	case StatusPosted:
		return nil
	case StatusDraft:
		return ErrDraftNotCancellable
	case StatusCancelled:
		return ErrAlreadyCancelled
	case StatusLocked:
		return ErrDocumentLocked
	}
	return ErrNotPosted
}

// CanLock checks the POSTED -> LOCKED transition.
func (d Document) CanLock() error {
	switch d.Status {
	case StatusPosted:
		return nil
	case StatusLocked:
		return ErrDocumentLocked
	case StatusCancelled:
		return ErrAlreadyCancelled
	}
	return ErrNotPosted
}
