package config

const (
	// TopicDocumentUploaded is the NSQ topic for new document uploads.
	TopicDocumentUploaded = "document.uploaded"

	// TopicDocumentProcessed is the NSQ topic for processing outcomes (completed/failed).
	TopicDocumentProcessed = "document.processed"

	// TopicDocumentDeleted is the NSQ topic for document deletions.
	TopicDocumentDeleted = "document.deleted"
)
