package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/atinyakov/storyapp/internal/client/controller"
	"github.com/atinyakov/storyapp/internal/client/prompt"
	"github.com/atinyakov/storyapp/internal/logger"
	"github.com/atinyakov/storyapp/internal/models"
	"go.uber.org/zap"
)

const helpText = "Available commands: help, login, register, feed, refresh, post, logout, whoami, exit"

// app is the terminal presentation layer: it renders controller states and
// follows their navigation events.
type app struct {
	out    io.Writer
	prompt *prompt.Prompter
	store  controller.SessionStore
	log    *zap.Logger
	wait   time.Duration

	login    *controller.Login
	register *controller.Register
	feed     *controller.Feed
	create   *controller.Create

	nav     chan controller.Event
	done    chan struct{}
	forward sync.WaitGroup
	mounted bool
}

func newApp(client interface {
	controller.AuthAPI
	controller.StoryAPI
}, store controller.SessionStore, in io.Reader, out io.Writer, log *zap.Logger, wait time.Duration) *app {
	a := &app{
		out:      out,
		prompt:   prompt.New(in, out),
		store:    store,
		log:      logger.OrNop(log),
		wait:     wait,
		login:    controller.NewLogin(client, store, log),
		register: controller.NewRegister(client, log),
		feed:     controller.NewFeed(client, store, log),
		create:   controller.NewCreate(client, store, log),
		nav:      make(chan controller.Event, 16),
		done:     make(chan struct{}),
	}
	a.follow(a.feed.Events())
	a.follow(a.create.Events())
	return a
}

func (a *app) follow(events <-chan controller.Event) {
	a.forward.Add(1)
	go func() {
		defer a.forward.Done()
		for ev := range events {
			select {
			case a.nav <- ev:
			case <-a.done:
				return
			}
		}
	}()
}

// close disposes every controller and stops the event forwarders.
func (a *app) close() {
	close(a.done)
	a.login.Dispose()
	a.register.Dispose()
	a.feed.Dispose()
	a.create.Dispose()
	a.forward.Wait()
}

// run reads commands until exit or end of input.
func (a *app) run(ctx context.Context) error {
	sess, err := a.store.Current(ctx)
	switch {
	case err != nil:
		fmt.Fprintf(a.out, "Saved session unavailable: %v\n", err)
	case sess.IsLoggedIn:
		fmt.Fprintln(a.out, "Welcome back. Type 'feed' to see the latest stories.")
	default:
		fmt.Fprintln(a.out, "Please log in or register. Type 'help' for a list of commands.")
	}

	for {
		a.drainNav()
		line, err := a.prompt.Line("story> ")
		if errors.Is(err, prompt.ErrAborted) {
			return nil
		}
		if err != nil {
			return err
		}
		args := strings.Fields(line)
		if len(args) == 0 {
			continue
		}

		switch args[0] {
		case "help":
			fmt.Fprintln(a.out, helpText)
		case "login":
			a.doLogin()
		case "register":
			a.doRegister()
		case "feed":
			a.showFeed(false)
		case "refresh":
			a.showFeed(true)
		case "post":
			a.doPost()
		case "logout":
			a.doLogout(ctx)
		case "whoami":
			a.whoami(ctx)
		case "exit":
			fmt.Fprintln(a.out, "Bye")
			return nil
		default:
			fmt.Fprintln(a.out, "Unknown command. Type 'help' for a list of commands.")
		}
	}
}

func (a *app) doLogin() {
	creds, err := a.prompt.Credentials()
	if err != nil {
		fmt.Fprintf(a.out, "Login cancelled: %v\n", err)
		return
	}
	a.login.Invoke(creds)
	st, ok := await(a, a.login.Operation)
	if !ok {
		return
	}
	if st.Status == controller.StatusFailed {
		fmt.Fprintf(a.out, "Login failed: %s\n", st.Error)
		return
	}
	fmt.Fprintln(a.out, "Logged in.")
	a.showFeed(false)
}

func (a *app) doRegister() {
	reg, err := a.prompt.Registration()
	if err != nil {
		fmt.Fprintf(a.out, "Registration cancelled: %v\n", err)
		return
	}
	a.register.Invoke(reg)
	st, ok := await(a, a.register.Operation)
	if !ok {
		return
	}
	if st.Status == controller.StatusFailed {
		fmt.Fprintf(a.out, "Registration failed: %s\n", st.Error)
		return
	}
	fmt.Fprintf(a.out, "%s. You can log in now.\n", st.Data)
}

func (a *app) showFeed(refresh bool) {
	switch {
	case !a.mounted:
		a.mounted = true
		a.feed.Mount()
	case refresh:
		a.feed.Refresh()
	default:
		if st := a.feed.State(); st.Status == controller.StatusSucceeded {
			printStories(a.out, st.Data)
			return
		}
		a.feed.Refresh()
	}

	st, ok := await(a, a.feed.Operation)
	if !ok {
		return
	}
	if st.Status == controller.StatusFailed {
		fmt.Fprintf(a.out, "Could not load stories: %s\n", st.Error)
		return
	}
	printStories(a.out, st.Data)
}

func (a *app) doPost() {
	story, err := a.prompt.NewStory()
	if err != nil {
		fmt.Fprintf(a.out, "Post cancelled: %v\n", err)
		return
	}
	a.create.Invoke(story)
	st, ok := await(a, a.create.Operation)
	if !ok {
		return
	}
	if st.Status == controller.StatusFailed {
		fmt.Fprintf(a.out, "Upload failed: %s\n", st.Error)
		return
	}
	fmt.Fprintln(a.out, st.Data)
	a.showFeed(true)
}

func (a *app) doLogout(ctx context.Context) {
	if err := a.feed.Logout(ctx); err != nil {
		fmt.Fprintf(a.out, "Logout failed: %v\n", err)
		return
	}
	fmt.Fprintln(a.out, "Logged out.")
}

func (a *app) whoami(ctx context.Context) {
	sess, err := a.store.Current(ctx)
	if err != nil {
		fmt.Fprintf(a.out, "Saved session unavailable: %v\n", err)
		return
	}
	if !sess.IsLoggedIn {
		fmt.Fprintln(a.out, "Not logged in.")
		return
	}
	fmt.Fprintln(a.out, "Logged in.")
}

func (a *app) drainNav() {
	for {
		select {
		case ev := <-a.nav:
			a.navigate(ev)
		default:
			return
		}
	}
}

func (a *app) navigate(ev controller.Event) {
	switch ev {
	case controller.EventRedirectToEntry:
		fmt.Fprintln(a.out, "Please log in or register first.")
	case controller.EventNavigateToFeed:
		a.log.Debug("returning to feed")
	}
}

// await blocks until op settles. It reports false when a redirect to the
// entry screen arrives first or nothing settles within the wait window.
func await[In, T any](a *app, op *controller.Operation[In, T]) (controller.State[T], bool) {
	ctx, cancel := context.WithTimeout(context.Background(), a.wait)
	defer cancel()

	states := op.Subscribe(ctx)
	for {
		select {
		case st, ok := <-states:
			if !ok {
				fmt.Fprintln(a.out, "Still working, try again in a moment.")
				return st, false
			}
			if st.Status == controller.StatusSucceeded || st.Status == controller.StatusFailed {
				return st, true
			}
		case ev := <-a.nav:
			a.navigate(ev)
			if ev == controller.EventRedirectToEntry {
				return controller.State[T]{}, false
			}
		}
	}
}

func printStories(out io.Writer, stories []models.Story) {
	if len(stories) == 0 {
		fmt.Fprintln(out, "No stories yet.")
		return
	}
	for _, s := range stories {
		fmt.Fprintf(out, "[%s] %s  %s (%s)\n", s.Initial(), s.AuthorName, s.CreatedDate(), s.ID)
		fmt.Fprintf(out, "    %s\n", s.Description)
		if s.HasLocation() {
			fmt.Fprintf(out, "    at %.5f, %.5f\n", s.Lat.Value, s.Lon.Value)
		}
		if s.PhotoURL != "" {
			fmt.Fprintf(out, "    %s\n", s.PhotoURL)
		}
	}
}
