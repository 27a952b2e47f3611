package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	signup "github.com/goliatone/go-signup"
)

const (
	PathHome      = signup.RootPath
	PathSignUp    = "/sign-up"
	PathWelcome   = signup.WelcomePath
	PathScenarios = "/testing-scenarios"
)

// readPassword is swapped in tests.
var readPassword = term.ReadPassword

func (a *App) registerPages() {
	a.router.
		Handle(PathHome, "home", a.homePage).
		Handle(PathSignUp, "sign-up", a.signUpPage, signup.RequireAnonymous(a.sessions, a.scenarios, a.logger.GetLogger("guard"))).
		Handle(PathWelcome, "welcome", a.welcomePage, signup.RequireAuthenticated(a.sessions)).
		Handle(PathScenarios, "testing-scenarios", a.scenariosPage)
}

func (a *App) homePage(ctx context.Context) error {
	session, err := a.sessions.Session(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintf(a.out, "[%s theme]\n", a.settings.EffectiveTheme(ctx))
	if session.IsLoggedIn() {
		fmt.Fprintf(a.out, "Signed in as %s\n", session.User.Email)
		return nil
	}
	fmt.Fprintln(a.out, "You are not signed in. Run `signup sign-up` to create an account.")
	return nil
}

func (a *App) welcomePage(ctx context.Context) error {
	user, err := a.sessions.User(ctx)
	if err != nil {
		return err
	}
	if user == nil {
		return nil
	}
	fmt.Fprintf(a.out, "Welcome, %s!\n", user.Email)
	if user.Announcements {
		fmt.Fprintln(a.out, "You are subscribed to announcements.")
	}
	return nil
}

func (a *App) scenariosPage(ctx context.Context) error {
	flags, err := a.scenarios.Flags(ctx)
	if err != nil {
		return err
	}
	for _, s := range signup.Scenarios {
		mark := " "
		if flags.Done(s) {
			mark = "x"
		}
		fmt.Fprintf(a.out, "[%s] %s\n", mark, s)
	}
	return nil
}

func (a *App) signUpPage(ctx context.Context) error {
	stop := a.form.EmailValidationInProgress.Subscribe(func(checking bool) {
		if checking {
			fmt.Fprintln(a.out, "checking email...")
		}
	})
	defer stop()

	req, err := a.collectSignUp(ctx)
	if err != nil {
		return err
	}

	if _, err := a.form.Submit(ctx, req); err != nil {
		if verr, ok := signup.AsValidationError(err); ok {
			for _, f := range verr.ValidationErrors {
				fmt.Fprintf(a.out, "%s: %s\n", f.Field, f.Message)
			}
			return nil
		}
		fmt.Fprintf(a.out, "Sign up failed: %v\n", err)
		return nil
	}
	return nil
}

func (a *App) collectSignUp(ctx context.Context) (signup.SignUpRequest, error) {
	req := signup.SignUpRequest{
		Email:    a.input.email,
		Password: a.input.password,
	}

	var err error
	if req.Email == "" {
		if req.Email, err = a.prompt("Email"); err != nil {
			return req, err
		}
	}

	if verr := a.form.ValidateEmail(ctx, req.Email); verr != nil {
		msg, _ := verr.Message("email")
		fmt.Fprintf(a.out, "email: %s\n", msg)
	}

	if req.Password == "" {
		if req.Password, err = a.promptPassword("Password"); err != nil {
			return req, err
		}
	}

	if a.input.announcements != nil {
		req.Announcements = *a.input.announcements
	} else {
		answer, err := a.prompt("Receive announcements? [y/N]")
		if err != nil {
			return req, err
		}
		req.Announcements = strings.EqualFold(answer, "y") || strings.EqualFold(answer, "yes")
	}

	return req, nil
}

func (a *App) prompt(label string) (string, error) {
	fmt.Fprintf(a.out, "%s: ", label)
	line, err := a.in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func (a *App) promptPassword(label string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return a.prompt(label)
	}

	fmt.Fprintf(a.out, "%s: ", label)
	pw, err := readPassword(fd)
	fmt.Fprintln(a.out)
	if err != nil {
		return "", err
	}
	return string(pw), nil
}
