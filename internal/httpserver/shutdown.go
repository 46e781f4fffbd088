package httpserver

import "time"

// ShutdownTimeout bounds graceful shutdown. The same deadline covers both
// draining in-flight requests and flushing the media cleanup queue.
var ShutdownTimeout = 10 * time.Second
