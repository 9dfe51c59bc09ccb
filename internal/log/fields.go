package log

const (
	FieldComponent  = "component"
	FieldRequestID  = "request_id"
	FieldClientIP   = "client_ip"
	FieldMethod     = "method"
	FieldPath       = "path"
	FieldStatusCode = "status_code"
	FieldDuration   = "duration_ms"
	FieldError      = "error"
	FieldOperation  = "operation"
	FieldChatID     = "chat_id"
	FieldPeriod     = "period"
	FieldVaultID    = "vault_id"
	FieldCurrency   = "currency"
	FieldAmount     = "amount"
	FieldComplete   = "complete"
	FieldRecipients = "recipients"
)

const (
	ComponentApp       = "app"
	ComponentHTTP      = "http"
	ComponentBot       = "bot"
	ComponentReport    = "report"
	ComponentReminder  = "reminder"
	ComponentStorage   = "storage"
	ComponentAMQP      = "amqp"
	ComponentWorker    = "worker"
	ComponentSheets    = "sheets"
	ComponentCache     = "cache"
	ComponentCurrency  = "currency"
	ComponentSecurity  = "security"
	ComponentRateLimit = "rate_limit"
	ComponentBackend   = "backend"
)

const (
	OpCreate   = "create"
	OpUpdate   = "update"
	OpSubmit   = "submit"
	OpFinalize = "finalize"
	OpNotify   = "notify"
	OpSync     = "sync"
	OpConvert  = "convert"
	OpStartup  = "startup"
	OpShutdown = "shutdown"
)

// Fields is an ordered builder of slog key/value pairs.
type Fields struct {
	kv []any
}

func NewFields() *Fields {
	return &Fields{}
}

func (f *Fields) add(k string, v any) *Fields {
	f.kv = append(f.kv, k, v)
	return f
}

func (f *Fields) WithComponent(c string) *Fields  { return f.add(FieldComponent, c) }
func (f *Fields) WithRequestID(id string) *Fields { return f.add(FieldRequestID, id) }
func (f *Fields) WithClientIP(ip string) *Fields  { return f.add(FieldClientIP, ip) }
func (f *Fields) WithOperation(op string) *Fields { return f.add(FieldOperation, op) }
func (f *Fields) WithChatID(id int64) *Fields     { return f.add(FieldChatID, id) }
func (f *Fields) WithPeriod(key string) *Fields   { return f.add(FieldPeriod, key) }

func (f *Fields) WithError(err error) *Fields {
	if err == nil {
		return f
	}
	return f.add(FieldError, err.Error())
}

// WithVault adds the vault id, currency and amount of a submission.
func (f *Fields) WithVault(id, currency string, amount float64) *Fields {
	return f.add(FieldVaultID, id).add(FieldCurrency, currency).add(FieldAmount, amount)
}

func (f *Fields) WithHTTPRequest(method, path string) *Fields {
	return f.add(FieldMethod, method).add(FieldPath, path)
}

func (f *Fields) WithHTTPResponse(status int, durationMs int64) *Fields {
	return f.add(FieldStatusCode, status).add(FieldDuration, durationMs)
}

func (f *Fields) Args() []any {
	return f.kv
}
