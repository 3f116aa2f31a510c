package log

// Common field names for structured logging.
const (
	FieldComponent = "component"
	FieldMethod    = "method"
	FieldPath      = "path"
	FieldStatus    = "status_code"
	FieldDuration  = "duration_ms"
	FieldError     = "error"
	FieldOperation = "operation"

	FieldRecordID  = "record_id"
	FieldTitle     = "title"
	FieldAmount    = "amount"
	FieldType      = "type"
	FieldScope     = "scope"
	FieldRows      = "rows_affected"
	FieldEndpoint  = "endpoint"
	FieldCleared   = "cleared"
	FieldPushed    = "pushed"
	FieldQueueName = "queue"
)

// Components defines standard component names.
const (
	ComponentApp     = "app"
	ComponentHTTP    = "http"
	ComponentStorage = "storage"
	ComponentSync    = "sync"
	ComponentAMQP    = "amqp"
	ComponentWorker  = "worker"
)

// Operations defines standard operation names.
const (
	OpCreate  = "create"
	OpUpdate  = "update"
	OpTrash   = "trash"
	OpRestore = "restore"
	OpPurge   = "purge"
	OpList    = "list"
	OpSearch  = "search"
	OpSync    = "sync"
	OpPublish = "publish"
	OpConsume = "consume"
)
