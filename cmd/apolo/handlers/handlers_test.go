package handlers

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/neuro-inc/apolo-cli/internal/config"
	apolotest "github.com/neuro-inc/apolo-cli/internal/testing"
	"github.com/neuro-inc/apolo-cli/internal/ui/prompt"
)

// harness swaps the handler factories for a fake platform and an
// in-memory config.
type harness struct {
	platform *apolotest.Platform
	cfg      *config.Config
	saves    int
	removed  bool
	prompter prompt.Static
	env      *Env
	out      *bytes.Buffer
	errOut   *bytes.Buffer
	ctx      context.Context
}

func newHarness(t *testing.T) *harness {
	return newHarnessWith(t, apolotest.NewConfigBuilder())
}

func newHarnessWith(t *testing.T, b *apolotest.ConfigBuilder) *harness {
	t.Helper()
	p := apolotest.NewPlatform(t)
	h := &harness{
		platform: p,
		cfg:      b.WithPlatform(p).Build(),
		out:      &bytes.Buffer{},
		errOut:   &bytes.Buffer{},
	}

	origLoad, origSave, origRemove := loadConfig, saveConfig, removeConfig
	origPrompter, origTerminal := newPrompter, isTerminal
	t.Cleanup(func() {
		loadConfig, saveConfig, removeConfig = origLoad, origSave, origRemove
		newPrompter, isTerminal = origPrompter, origTerminal
	})

	loadConfig = func(string) (*config.Config, error) {
		if h.removed {
			return nil, config.ErrNotLoggedIn
		}
		cfg := *h.cfg
		return &cfg, nil
	}
	saveConfig = func(_ string, cfg *config.Config) error {
		saved := *cfg
		h.cfg = &saved
		h.saves++
		return nil
	}
	removeConfig = func(string) error {
		h.removed = true
		return nil
	}
	newPrompter = func() prompt.Prompter { return h.prompter }
	isTerminal = func(io.Writer) bool { return false }

	h.env = NewEnv(config.Settings{ConfigDir: t.TempDir(), Color: config.ColorNever}, "test", strings.NewReader(""), h.out, h.errOut)
	h.env.Timeouts.PollInitialDelay = time.Millisecond
	h.env.Timeouts.PollMaxDelay = 5 * time.Millisecond
	h.ctx = WithEnv(apolotest.TestContext(t), h.env)
	return h
}

// requested reports whether the platform served "METHOD /path".
func (h *harness) requested(req string) bool {
	for _, r := range h.platform.Requests() {
		if r == req {
			return true
		}
	}
	return false
}
