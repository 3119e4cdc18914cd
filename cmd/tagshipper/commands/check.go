package commands

import (
	"fmt"

	"git.home.luguber.info/inful/tagshipper/internal/config"
	"git.home.luguber.info/inful/tagshipper/internal/process"
)

// CheckCmd implements the 'check' command.
type CheckCmd struct{}

func (c *CheckCmd) Run(g *Global, root *CLI) error {
	w := g.out()
	cfg, err := loadConfig(root)
	if err != nil {
		_, _ = fmt.Fprintf(w, "%s configuration %s\n", failColor.Sprint("✗"), root.Config)
		return err
	}
	_, _ = fmt.Fprintf(w, "%s configuration %s\n", okColor.Sprint("✓"), root.Config)

	if err := process.LookPath(requiredTools(cfg)...); err != nil {
		_, _ = fmt.Fprintf(w, "%s tools: %v\n", failColor.Sprint("✗"), err)
		return err
	}
	_, _ = fmt.Fprintf(w, "%s tools available\n", okColor.Sprint("✓"))
	return nil
}

func requiredTools(cfg *config.Config) []string {
	tools := []string{"scp"}
	if cfg.Git.Backend == config.GitBackendCLI {
		tools = append(tools, "git")
	}
	return tools
}
