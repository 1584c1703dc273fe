package deps

import (
	"go.uber.org/dig"

	"containerdisk.run/cmd/containerdisk/rootcmd"
)

func Build() (*dig.Container, error) {
	container := dig.New()

	for _, c := range constructors() {
		if err := container.Provide(c); err != nil {
			return nil, err
		}
	}

	return container, nil
}

func constructors() []any {
	return []any{
		rootcmd.ProvideRootCmd,
		ProvideIOStreams,
		ProvideArgs,
		ProvideGlobalOptions,
		ProvideEnv,
		ProvideLogFactory,
		ProvideRunner,
		ProvideFamilyCmds,
		ProvideTemplateCmd,
		ProvideVersionCmd,
	}
}
