package remoteeval

import (
	"time"

	"github.com/concordat/concord/internal/port/evaluator"
)

func init() {
	evaluator.Register(providerName, func(config map[string]string) (evaluator.Provider, error) {
		var timeout time.Duration
		if v := config["timeout"]; v != "" {
			timeout, _ = time.ParseDuration(v)
		}
		return New(config["url"], config["api_key"], timeout)
	})
}
