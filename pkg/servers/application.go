package servers

import (
	"event-service/pkg/resources"
)

// RunApplication blocks until every server attached to app has stopped and only then
// releases closables, last first.
func RunApplication(app Application, closables ...resources.Closable) error {
	defer func() {
		for i := len(closables) - 1; i >= 0; i-- {
			closables[i].Close()
		}
	}()

	return app.Run()
}
