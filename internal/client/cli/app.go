package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/dmitrijs2005/handlewatch/internal/api"
	"github.com/dmitrijs2005/handlewatch/internal/client/client"
	"github.com/dmitrijs2005/handlewatch/internal/client/config"
)

// operatorClient is the daemon surface the console uses.
type operatorClient interface {
	Login(ctx context.Context, operatorID int64, key []byte) error
	Ping(ctx context.Context) (*api.PingResponse, error)
	AddHandles(ctx context.Context, names []string) (*api.AddHandlesResponse, error)
	ImportHandles(ctx context.Context, text string) (*api.AddHandlesResponse, error)
	RemoveHandle(ctx context.Context, name string) error
	ListHandles(ctx context.Context) ([]api.Handle, error)
	FreeHandles(ctx context.Context) ([]string, error)
	ClearHandles(ctx context.Context) (int64, error)
	Stats(ctx context.Context) (*api.StatsResponse, error)
	History(ctx context.Context, name string, limit int) (*api.HistoryResponse, error)
	Status(ctx context.Context) (*api.StatusResponse, error)
	StartMonitoring(ctx context.Context) error
	StopMonitoring(ctx context.Context) error
	CheckHandle(ctx context.Context, name string) (*api.CheckHandleResponse, error)
	Authorize(ctx context.Context) (bool, error)
	ResetSession(ctx context.Context) error
	SubmitInput(ctx context.Context, text string) (string, error)
	Settings(ctx context.Context) (map[string]string, error)
	SetSetting(ctx context.Context, key, value string) error
	Export(ctx context.Context) (*api.ExportResponse, error)
	Events(ctx context.Context) (client.EventStream, error)
	Close() error
}

type App struct {
	config *config.Config
	client operatorClient
	reader *bufio.Reader
	out    io.Writer

	mu       sync.Mutex
	pending  string
	loggedIn bool
}

func NewApp(c *config.Config) (*App, error) {
	apiClient, err := client.NewOperatorClientService(c.ServerEndpointAddr)
	if err != nil {
		return nil, err
	}
	return newApp(c, apiClient, os.Stdin, os.Stdout), nil
}

func newApp(c *config.Config, oc operatorClient, in io.Reader, out io.Writer) *App {
	return &App{config: c, client: oc, reader: bufio.NewReader(in), out: out}
}

// Run logs in, starts the event watcher and blocks in the REPL.
func (a *App) Run(ctx context.Context) {
	defer a.client.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	a.println("Welcome to handlewatch console (type 'help' for commands)")

	if err := a.Login(ctx); err != nil {
		return
	}

	go a.watchEvents(ctx)

	runREPL(ctx, a, a.getStatus, bufio.NewScanner(a.reader))
}

func (a *App) println(args ...any) {
	a.mu.Lock()
	defer a.mu.Unlock()
	fmt.Fprintln(a.out, args...)
}

func (a *App) printf(format string, args ...any) {
	a.mu.Lock()
	defer a.mu.Unlock()
	fmt.Fprintf(a.out, format, args...)
}

func (a *App) isLoggedIn() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.loggedIn
}

func (a *App) pendingKind() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.pending
}

func (a *App) setPending(kind string) {
	a.mu.Lock()
	a.pending = kind
	a.mu.Unlock()
}

func (a *App) getStatus() string {
	if k := a.pendingKind(); k != "" {
		return fmt.Sprintf("(awaiting %s)", k)
	}
	return ""
}

// requestContext bounds a single RPC by the configured timeout.
func (a *App) requestContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if a.config.RequestTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, a.config.RequestTimeout)
}
