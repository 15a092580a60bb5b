package notify

import "errors"

var (
	ErrStorageNil         = errors.New("storage is nil")
	ErrEnqueuerNil        = errors.New("enqueuer is nil")
	ErrSenderNil          = errors.New("sender is nil")
	ErrTemplateStoreNil   = errors.New("template store is nil")
	ErrInvalidRecipient   = errors.New("invalid recipient address")
	ErrDeliveryNotFound   = errors.New("delivery record not found")
	ErrPreferenceNotFound = errors.New("notification preference not found")
	ErrDeliveryExists     = errors.New("delivery record already exists")
	ErrInvalidContext     = errors.New("context value is not transport-safe")
	ErrTemplateNotFound   = errors.New("template not found")
	ErrTemplateExists     = errors.New("template already registered")
)
