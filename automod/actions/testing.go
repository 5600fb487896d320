package actions

import (
	"github.com/hivewatch/hivewatch/automod/countstore"
	"github.com/hivewatch/hivewatch/automod/engine"
)

// Pipeline sharing the engine's mock platform and stores, for use in tests.
func PipelineTestFixture(eng *engine.Engine, liveness LivenessScheduler) *Pipeline {
	return NewPipeline(&Env{
		Logger:   eng.Logger,
		Client:   eng.Client,
		Store:    eng.Store,
		Keys:     eng.Keys,
		Counts:   countstore.NewKVCountStore(eng.Store, eng.Keys),
		History:  eng,
		Liveness: liveness,
		Webhook:  NewWebhookNotifier(),
	})
}
