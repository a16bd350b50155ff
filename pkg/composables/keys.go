package composables

type ctxKey string

const (
	poolKey    ctxKey = "pool"
	txKey      ctxKey = "tx"
	loggerKey  ctxKey = "logger"
	actorKey   ctxKey = "actor"
	requestKey ctxKey = "request_id"
)
