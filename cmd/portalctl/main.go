// Command portalctl is an operator client for the hospital portal API.
// It drives the same session machinery the shell uses: login stores the
// token and profile, get issues authorized requests through the request
// rewriter, and watch runs the idle-lock monitor with a local metrics
// endpoint.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"mediport.org/internal/config"
	"mediport.org/internal/idle"
	"mediport.org/internal/login"
	"mediport.org/internal/obs"
	"mediport.org/internal/rbac"
	"mediport.org/internal/session"
	"mediport.org/internal/storage"
	"mediport.org/internal/transport"
)

var version = "0.3.1"

func usage() {
	fmt.Fprintf(os.Stderr, `portalctl %s, hospital portal client

Usage:
  portalctl login -user <username> [-no-remember]
  portalctl whoami
  portalctl get <path>
  portalctl logout
  portalctl watch

Configuration comes from PORTAL_* environment variables (see .env).
`, version)
	os.Exit(2)
}

// app bundles the wired client stack.
type app struct {
	cfg     *config.Config
	session *session.Context
	client  *transport.Client
	auth    *login.Authenticator
}

// logNavigator is the CLI's stand-in for the shell router: redirects are
// logged instead of rendered.
type logNavigator struct{}

func (logNavigator) NavigateTo(path string) {
	obs.LogEvent(map[string]any{"level": "info", "msg": "navigation requested", "path": path})
}

func newApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	durable, err := storage.OpenSQLite(cfg.StateDir)
	if err != nil {
		return nil, err
	}
	sess := session.NewContext(durable, storage.NewMemory(), cfg.APIBase)
	if cfg.HospitalID != "" {
		sess.SetHospitalID(cfg.HospitalID)
	}
	client, err := transport.NewClient(cfg.APIBase, sess, logNavigator{},
		transport.WithAPIPrefix(cfg.APIPrefix),
		transport.WithLoginPath(cfg.LoginPath),
		transport.WithRateLimit(20, 40),
	)
	if err != nil {
		return nil, err
	}
	return &app{
		cfg:     cfg,
		session: sess,
		client:  client,
		auth:    login.New(client, sess),
	}, nil
}

func main() {
	obs.Init()
	obs.InitBuildInfo(version)

	if len(os.Args) < 2 {
		usage()
	}
	a, err := newApp()
	if err != nil {
		log.Fatalf("startup: %v", err)
	}

	switch os.Args[1] {
	case "login":
		err = a.cmdLogin(os.Args[2:])
	case "whoami":
		err = a.cmdWhoami()
	case "get":
		err = a.cmdGet(os.Args[2:])
	case "logout":
		a.session.Logout()
		fmt.Println("logged out")
	case "watch":
		err = a.cmdWatch()
	default:
		usage()
	}
	if err != nil {
		log.Fatalf("%s: %v", os.Args[1], err)
	}
}

func (a *app) cmdLogin(args []string) error {
	fs := flag.NewFlagSet("login", flag.ExitOnError)
	user := fs.String("user", "", "username")
	noRemember := fs.Bool("no-remember", false, "keep the token in memory only")
	fs.Parse(args)
	if *user == "" {
		return fmt.Errorf("-user is required")
	}

	fmt.Fprint(os.Stderr, "Password: ")
	reader := bufio.NewReader(os.Stdin)
	password, err := reader.ReadString('\n')
	if err != nil && err != io.EOF {
		return err
	}
	password = strings.TrimRight(password, "\r\n")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	profile, err := a.auth.Login(ctx, login.Credentials{
		Username: *user,
		Password: password,
		Remember: !*noRemember,
	})
	if err != nil {
		return err
	}
	fmt.Printf("logged in as %s\n", profile.Username)
	return nil
}

func (a *app) cmdWhoami() error {
	if !a.session.IsAuthenticated() {
		return fmt.Errorf("not logged in")
	}
	profile, ok := a.session.Profile()
	if !ok {
		return fmt.Errorf("no stored profile")
	}
	fmt.Printf("username: %s\n", profile.Username)
	if primary, ok := a.session.PrimaryRole(); ok {
		fmt.Printf("primary role: %s\n", rbac.Format(string(primary)))
	}
	if scope := a.session.HospitalID(); scope != "" {
		fmt.Printf("hospital scope: %s\n", scope)
	}
	for _, role := range profile.Roles {
		fmt.Printf("role: %s\n", rbac.Format(role))
	}
	return nil
}

func (a *app) cmdGet(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: portalctl get <path>")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	req, err := a.client.NewRequest(ctx, http.MethodGet, args[0], nil)
	if err != nil {
		return err
	}
	resp, err := a.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if _, err := io.Copy(os.Stdout, resp.Body); err != nil {
		return err
	}
	fmt.Println()
	return nil
}

// cmdWatch runs the idle monitor as a long-lived agent. Stdin lines count
// as activity; "lock" and "unlock <password>" drive the transitions the
// shell would. Metrics and health are served locally for scraping.
func (a *app) cmdWatch() error {
	monitor := idle.NewMonitor(storage.NewMemory(),
		idle.WithTimeout(a.cfg.IdleTimeout),
		idle.OnTransition(func(locked bool) {
			obs.LogEvent(map[string]any{"level": "info", "msg": "lock transition", "locked": locked})
		}),
	)
	monitor.Start()
	defer monitor.Stop()

	screen := login.NewLockScreen(a.auth, monitor)

	mux := http.NewServeMux()
	mux.Handle("/metrics", obs.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "ok")
	})
	srv := &http.Server{
		Addr:              a.cfg.MetricsAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("metrics listener: %v", err)
		}
	}()
	log.Printf("watching session, idle timeout %v, metrics on %s", a.cfg.IdleTimeout, a.cfg.MetricsAddr)

	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			switch {
			case line == "lock":
				monitor.Lock()
			case strings.HasPrefix(line, "unlock "):
				if !screen.Submit(strings.TrimPrefix(line, "unlock ")) {
					fmt.Println("wrong password")
				}
			default:
				monitor.Touch()
			}
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	log.Println("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctx)
	log.Println("Stopped")
	return nil
}
