package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/felixgeelhaar/codequest/internal/api"
	"github.com/felixgeelhaar/codequest/internal/auth"
	"github.com/felixgeelhaar/codequest/internal/config"
	"github.com/felixgeelhaar/codequest/internal/queue"
)

// cmdStatus reports the health of a running codequestd
func cmdStatus() error {
	cfg, err := config.Load("")
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	addr := "http://" + cfg.Server.Addr()

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(addr + "/health")
	if err != nil {
		fmt.Println("Status: unreachable")
		return nil
	}
	defer resp.Body.Close()

	var status struct {
		Status   string          `json:"status"`
		Features map[string]bool `json:"features"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return fmt.Errorf("parse status: %w", err)
	}

	var enabled []string
	for name, on := range status.Features {
		if on {
			enabled = append(enabled, name)
		}
	}
	sort.Strings(enabled)

	fmt.Printf("Status:   %s\n", status.Status)
	fmt.Printf("Address:  %s\n", addr)
	fmt.Printf("Features: %s\n", strings.Join(enabled, ", "))
	return nil
}

// cmdToken issues a bearer token signed with the configured secret
func cmdToken(args []string) error {
	fs := flag.NewFlagSet("token", flag.ContinueOnError)
	admin := fs.Bool("admin", false, "grant admin access")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load("")
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	userID := fs.Arg(0)
	if userID == "" {
		if userID, err = auth.NewUserID(); err != nil {
			return err
		}
	}

	token, expires, err := auth.NewIssuer(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL()).Issue(userID, *admin)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "user %s, expires %s\n", userID, expires.Format(time.RFC3339))
	fmt.Println(token)
	return nil
}

// cmdHashPassphrase reads a passphrase from stdin and prints its bcrypt hash
func cmdHashPassphrase() error {
	fmt.Fprint(os.Stderr, "Passphrase: ")
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return fmt.Errorf("read passphrase: %w", err)
	}
	passphrase := strings.TrimRight(line, "\r\n")
	if passphrase == "" {
		return fmt.Errorf("passphrase must not be empty")
	}

	hash, err := auth.HashPassphrase(passphrase)
	if err != nil {
		return err
	}
	fmt.Println(hash)
	fmt.Fprintln(os.Stderr, "Set it as auth.admin_passphrase_hash or CODEQUEST_ADMIN_PASSPHRASE_HASH")
	return nil
}

// cmdWorker grades jobs from the RabbitMQ queue until interrupted
func cmdWorker() error {
	l, err := openLocal(false)
	if err != nil {
		return err
	}
	defer l.Close()

	if l.cfg.Queue.URL == "" {
		return fmt.Errorf("queue.url is not configured")
	}
	conn, err := queue.NewConnection(l.cfg.Queue.URL, l.logger.Named("queue"))
	if err != nil {
		return err
	}
	defer conn.Close()

	ccfg := queue.DefaultConsumerConfig()
	if l.cfg.Queue.Workers > 0 {
		ccfg.Workers = l.cfg.Queue.Workers
		ccfg.Prefetch = l.cfg.Queue.Workers
	}
	if l.cfg.Queue.JobTimeoutSeconds > 0 {
		ccfg.JobTimeout = time.Duration(l.cfg.Queue.JobTimeoutSeconds) * time.Second
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	consumer := queue.NewConsumer(conn, api.GradeJobHandler(l.catalog, l.grader), ccfg)
	if err := consumer.Start(ctx); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "worker running with %d goroutines, Ctrl+C to stop\n", ccfg.Workers)

	<-ctx.Done()
	consumer.Stop()
	return nil
}
