package flows

import (
	"github.com/quarrylabs/quarry/flow"
	"github.com/quarrylabs/quarry/flow/steps"
)

// Register adds the built-in steps and flows to the registry. Steps go
// first so that flow registration can verify its dependencies exist.
func Register(r *flow.Registry) error {
	components := []flow.Component{
		&steps.SearchToDocSource{},
		&steps.RetrieveContext{},
		&steps.PlanTopic{},
		&steps.GenerateAnswer{},
		NewAnswerFlow(),
		NewResearchFlow(),
	}
	for _, c := range components {
		if err := r.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// NewRegistry returns a registry preloaded with the built-in steps and flows.
func NewRegistry() *flow.Registry {
	r := flow.NewRegistry()
	if err := Register(r); err != nil {
		panic(err)
	}
	return r
}
