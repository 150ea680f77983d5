package console

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/JakeFAU/flowfact-console/internal/config"
	"github.com/JakeFAU/flowfact-console/internal/gate"
	"github.com/JakeFAU/flowfact-console/internal/progress"
	"github.com/JakeFAU/flowfact-console/internal/sequencer"
	"github.com/JakeFAU/flowfact-console/internal/session"
)

const credentialPrompt = "Enter API Key: "

// Menu entries besides the operations themselves.
const (
	menuRunAll = "Run all"
	menuQuit   = "Quit"
)

// IDGenerator creates session identifiers.
type IDGenerator interface {
	NewSessionID() (uuid.UUID, error)
}

// Clock supplies timestamps.
type Clock interface {
	Now() time.Time
}

// Verifier is the credential gate.
type Verifier interface {
	Verify(ctx context.Context, sess *session.Session, credential string) gate.Verdict
}

// Runner executes operations for a verified session.
type Runner interface {
	Operations() []sequencer.Operation
	Run(ctx context.Context, sess *session.Session, obs sequencer.Observer) ([]sequencer.Result, error)
	RunOne(ctx context.Context, sess *session.Session, name string, obs sequencer.Observer) (sequencer.Result, error)
}

// Console drives one interactive session.
type Console struct {
	verifier Verifier
	runner   Runner
	reader   CredentialReader
	menu     Menu
	render   *Renderer
	ids      IDGenerator
	clock    Clock
	emitter  progress.Emitter
	mode     string
	logger   *zap.Logger
}

// Deps groups the collaborators of a Console.
type Deps struct {
	Verifier Verifier
	Runner   Runner
	Reader   CredentialReader
	Menu     Menu
	Output   io.Writer
	IDs      IDGenerator
	Clock    Clock
	Emitter  progress.Emitter
	Logger   *zap.Logger
}

// New builds a Console for the given config.ConsoleConfig.
func New(cfg config.ConsoleConfig, deps Deps) *Console {
	c := &Console{
		verifier: deps.Verifier,
		runner:   deps.Runner,
		reader:   deps.Reader,
		menu:     deps.Menu,
		render:   NewRenderer(deps.Output, cfg.NoColor),
		ids:      deps.IDs,
		clock:    deps.Clock,
		emitter:  deps.Emitter,
		mode:     cfg.Mode,
		logger:   deps.Logger,
	}
	if c.menu == nil {
		c.menu = PromptMenu{}
	}
	if c.emitter == nil {
		c.emitter = progress.NopEmitter{}
	}
	if c.logger == nil {
		c.logger = zap.NewNop()
	}
	return c
}

// Run executes one session: prompt until a credential is verified, then run
// operations. Closing the input ends the session without error.
func (c *Console) Run(ctx context.Context) error {
	id, err := c.ids.NewSessionID()
	if err != nil {
		return fmt.Errorf("new session id: %w", err)
	}
	sess := session.New(id, c.clock.Now())
	logger := c.logger.With(zap.Stringer("session_id", id))
	c.emit(sess, progress.StageSessionStart)
	defer func() {
		sess.Close()
		c.emit(sess, progress.StageSessionDone)
	}()

	c.render.Banner()
	if err := c.authenticate(ctx, sess); err != nil {
		return c.finish(err)
	}
	logger.Debug("session verified")

	var results []sequencer.Result
	if c.mode == config.ModeManual {
		results, err = c.runMenu(ctx, sess)
	} else {
		results, err = c.runner.Run(ctx, sess, c.render)
	}
	c.render.Summary(results)
	return c.finish(err)
}

// finish reports an unexpected error to the user. A closed input or an
// interrupt ends the session quietly.
func (c *Console) finish(err error) error {
	if err = endOfInput(err); err != nil {
		c.render.Error("Error: " + err.Error())
	}
	return err
}

func (c *Console) authenticate(ctx context.Context, sess *session.Session) error {
	for {
		credential, err := c.reader.ReadCredential(ctx, credentialPrompt)
		if err != nil {
			return err
		}
		verdict := c.verifier.Verify(ctx, sess, credential)
		c.render.Verdict(verdict)
		if verdict.Verified {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

func (c *Console) runMenu(ctx context.Context, sess *session.Session) ([]sequencer.Result, error) {
	ops := c.runner.Operations()
	items := make([]string, 0, len(ops)+2)
	for _, op := range ops {
		items = append(items, op.Title)
	}
	items = append(items, menuRunAll, menuQuit)

	var results []sequencer.Result
	for {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		idx, err := c.menu.Choose("Select an operation", items)
		if err != nil {
			return results, err
		}
		switch {
		case idx < 0 || idx >= len(items):
			return results, fmt.Errorf("menu returned index %d", idx)
		case items[idx] == menuQuit:
			return results, nil
		case items[idx] == menuRunAll:
			all, err := c.runner.Run(ctx, sess, c.render)
			results = append(results, all...)
			if err != nil {
				return results, err
			}
		default:
			res, err := c.runner.RunOne(ctx, sess, ops[idx].Name, c.render)
			if err != nil {
				return results, err
			}
			results = append(results, res)
		}
	}
}

func (c *Console) emit(sess *session.Session, stage progress.Stage) {
	c.emitter.Emit(progress.Event{
		SessionID: progress.UUIDToBytes(sess.ID()),
		TS:        c.clock.Now(),
		Stage:     stage,
	})
}

// endOfInput treats closed input, interrupts and cancellation as a normal end
// of session.
func endOfInput(err error) error {
	switch {
	case err == nil,
		errors.Is(err, io.EOF),
		errors.Is(err, ErrInterrupted),
		errors.Is(err, context.Canceled):
		return nil
	default:
		return err
	}
}
