package store

// DialogMemory is the persisted state of one conversation.
// Payload is a JSON document owned by the session layer.
type DialogMemory struct {
	DialogID  string
	Payload   string
	CreatedTs int64
	UpdatedTs int64
}

// DeleteDialogMemory deletes by id, or every dialog idle since UpdatedBefore.
type DeleteDialogMemory struct {
	DialogID      *string
	UpdatedBefore *int64
}
