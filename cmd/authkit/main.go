// Command authkit is a terminal client for the corvid identity provider:
// it signs in through the browser-based authorization flow and inspects
// the locally persisted session.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/corvidchat/authkit/internal/app"
	"github.com/corvidchat/authkit/pkg/authflow"
	"github.com/corvidchat/authkit/pkg/callback"
)

const usage = `usage: authkit <command>

commands:
  login     sign in through the identity provider
  status    show the current session
  refresh   renew the session tokens
  features  list the features the session unlocks
  logout    clear the local session
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	cfg, err := app.LoadConfig()
	if err != nil {
		log.Fatalf("configuration error: %v", err)
	}

	presenter := &stdinPresenter{in: bufio.NewReader(os.Stdin), out: os.Stdout}

	application, err := app.New(cfg, presenter)
	if err != nil {
		log.Fatalf("failed to initialize application: %v", err)
	}
	defer func() { _ = application.Close() }()

	presenter.router = application.Router

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1], application); err != nil {
		log.Fatalf("%v", err)
	}
}

func run(ctx context.Context, command string, application *app.Application) error {
	switch command {
	case "login":
		return runLogin(ctx, application)
	case "status":
		return runStatus(application)
	case "refresh":
		return runRefresh(ctx, application)
	case "features":
		return runFeatures(application)
	case "logout":
		application.Manager.SignOut()
		fmt.Println("signed out")
		return nil
	default:
		fmt.Fprint(os.Stderr, usage)
		return fmt.Errorf("unknown command %q", command)
	}
}

func runLogin(ctx context.Context, application *app.Application) error {
	id, err := application.Manager.Authenticate(ctx)
	if err != nil {
		switch {
		case errors.Is(err, authflow.ErrUserCancelled):
			return fmt.Errorf("sign-in cancelled")
		default:
			var denied *authflow.RoleAccessDeniedError
			if errors.As(err, &denied) {
				return fmt.Errorf("access denied: your account holds none of the required %s", denied.Claim)
			}
			return err
		}
	}

	fmt.Printf("signed in as %s", id.Subject)
	if id.DisplayName != "" {
		fmt.Printf(" (%s)", id.DisplayName)
	}
	fmt.Println()
	return nil
}

func runStatus(application *app.Application) error {
	id := application.Manager.Restore()
	if id == nil {
		fmt.Println("not signed in")
		return nil
	}

	fmt.Printf("subject:  %s\n", id.Subject)
	if id.Email != "" {
		fmt.Printf("email:    %s\n", id.Email)
	}
	fmt.Printf("roles:    %s\n", strings.Join(id.Roles, ", "))
	if len(id.Groups) > 0 {
		fmt.Printf("groups:   %s\n", strings.Join(id.Groups, ", "))
	}
	if application.Manager.Valid() {
		fmt.Println("token:    valid")
	} else {
		fmt.Println("token:    expired (run `authkit refresh`)")
	}
	return nil
}

func runRefresh(ctx context.Context, application *app.Application) error {
	if application.Manager.Restore() == nil {
		return fmt.Errorf("not signed in")
	}

	id, err := application.Manager.Refresh(ctx)
	if err != nil {
		if errors.Is(err, authflow.ErrInvalidToken) {
			return fmt.Errorf("session expired; run `authkit login`")
		}
		return err
	}

	fmt.Printf("session refreshed for %s\n", id.Subject)
	return nil
}

func runFeatures(application *app.Application) error {
	features := application.Engine.EnabledFeatures()
	if len(features) == 0 {
		fmt.Println("no features enabled")
		return nil
	}
	for _, feature := range features {
		fmt.Println(feature)
	}
	return nil
}

// stdinPresenter prints the authorization URL and reads the pasted
// redirect URL back from stdin, standing in for an OS URL-scheme handler.
type stdinPresenter struct {
	router *callback.Router
	in     *bufio.Reader
	out    io.Writer
}

func (p *stdinPresenter) Present(ctx context.Context, authURL string) error {
	fmt.Fprintf(p.out, "Open this URL in your browser to sign in:\n\n  %s\n\n", authURL)
	fmt.Fprint(p.out, "Paste the redirect URL here: ")

	line, err := p.in.ReadString('\n')
	if err != nil && line == "" {
		return fmt.Errorf("read redirect URL: %w", err)
	}

	if !p.router.Route(strings.TrimSpace(line)) {
		return fmt.Errorf("redirect URL was not accepted")
	}
	return nil
}
