package main

import (
	"bufio"
	"context"
	"crypto"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/itiky/educhain-dao/config"
	"github.com/itiky/educhain-dao/identity"
	"github.com/itiky/educhain-dao/logging"
	"github.com/itiky/educhain-dao/model"
	"github.com/itiky/educhain-dao/notify"
	"github.com/itiky/educhain-dao/service/client"
	"github.com/itiky/educhain-dao/transport"
)

const (
	FlagSessionKey    = "session-key"
	FlagSessionFile   = "session-file"
	FlagDialRetries   = "dial-retries"
	FlagMonitorPeriod = "monitor-period"
)

const dashboardHelp = `Commands:
  login <admin|student>          authenticate with a role
  logout                         drop the session
  whoami                         print the session identity
  list                           print courses and vote requests
  refresh                        re-read the service state
  create-course <title> | <desc> create a course (admin)
  propose <courseId>             open a vote request (student)
  up <voteId> / down <voteId>    vote (student)
  decline <voteId>               decline a vote request (admin)
  enroll <principal> <courseId>  enroll a student (admin)
  dropout <principal> <courseId> drop out a student (admin)
  enrollments                    list own enrollments (student)
  stats                          print remote call stats
  quit
`

// GetDashboardCmd returns the interactive dashboard command.
func GetDashboardCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dashboard",
		Short: "Start interactive governance dashboard",
		Run: func(cmd *cobra.Command, args []string) {
			// Parse inputs
			cfg, err := config.LoadClient(cmd.Flags())
			if err != nil {
				log.Fatalf("config: %v", err)
			}
			sessionKey, err := cmd.Flags().GetString(FlagSessionKey)
			if err != nil {
				log.Fatalf("%s flag: %v", FlagSessionKey, err)
			}
			sessionFile, err := cmd.Flags().GetString(FlagSessionFile)
			if err != nil {
				log.Fatalf("%s flag: %v", FlagSessionFile, err)
			}
			dialRetries, err := cmd.Flags().GetInt(FlagDialRetries)
			if err != nil {
				log.Fatalf("%s flag: %v", FlagDialRetries, err)
			}
			monitorPeriod, err := cmd.Flags().GetDuration(FlagMonitorPeriod)
			if err != nil {
				log.Fatalf("%s flag: %v", FlagMonitorPeriod, err)
			}

			logger, err := logging.Setup(cfg.Log.LoggingOptions())
			if err != nil {
				log.Fatalf("logging: %v", err)
			}

			var rootKey crypto.PublicKey
			if cfg.RootKey != "" {
				if rootKey, err = identity.ParsePublicKey(cfg.RootKey); err != nil {
					log.Fatalf("root key: %v", err)
				}
			}

			ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			out := cmd.OutOrStdout()
			notifier := notify.Multi{notify.NewTerminal(out), notify.NewLogger(logger)}
			dialOpts := transport.DialOptions{Retries: dialRetries, RetryFallback: time.Second}

			// Init identity provider client
			provider, err := transport.Dial(ctx, cfg.Identity.Address, dialOpts)
			if err != nil {
				logger.Error("identity provider dial failed", "address", cfg.Identity.Address, "error", err)
				notifier.Failure("Failed to init identity provider")
			}
			var providerCaller transport.Caller
			if provider != nil {
				providerCaller = provider
				defer provider.Close()
			}

			var store identity.DelegationStore
			if sessionFile != "" {
				if store, err = identity.NewFileStore(sessionFile); err != nil {
					log.Fatalf("session store: %v", err)
				}
			}

			authClient, err := identity.NewAuthClient(providerCaller, identity.AuthClientOptions{
				SessionKey: sessionKey,
				MaxTTL:     cfg.Identity.MaxTTL,
				Store:      store,
			})
			if err != nil {
				log.Fatalf("auth client init: %v", err)
			}

			// Init dashboard
			dial := func(ctx context.Context, address string) (transport.Caller, error) {
				caller, err := transport.Dial(ctx, address, dialOpts)
				if err != nil {
					return nil, err
				}
				return caller, nil
			}
			dash, err := client.NewDashboard(client.Config{
				ServiceAddress: cfg.Service.Address,
				Network:        cfg.Network,
				RootKey:        rootKey,
				CallTimeout:    cfg.CallTimeout,
				LoginTTL:       cfg.Identity.MaxTTL,
				MonitorPeriod:  monitorPeriod,
			}, authClient, dial, notifier, logger)
			if err != nil {
				log.Fatalf("dashboard init: %v", err)
			}
			defer dash.Close()

			_ = dash.Init(ctx)
			<-dash.Ready()

			fmt.Fprint(out, dashboardHelp)
			runREPL(ctx, dash, cmd.InOrStdin(), out, logger)
		},
	}
	cmd.Flags().String(config.FlagServiceAddress, config.DefaultAddress, "(optional) governance service address")
	cmd.Flags().String(config.FlagIdentityAddress, config.DefaultAddress, "(optional) identity provider address")
	cmd.Flags().String(config.FlagNetwork, config.NetworkLocal, "(optional) network mode (local, ic)")
	cmd.Flags().Duration(config.FlagCallTimeout, 10*time.Second, "(optional) remote call timeout")
	cmd.Flags().String(config.FlagRootKey, "", "(optional) pinned service root key (PEM or file path)")
	cmd.Flags().String(FlagSessionKey, "", "(optional) session key (principal is derived from it, random if empty)")
	cmd.Flags().String(FlagSessionFile, "", "(optional) file keeping the delegation between runs (in-memory if empty)")
	cmd.Flags().Int(FlagDialRetries, 3, "(optional) connection refused retries")
	cmd.Flags().Duration(FlagMonitorPeriod, 30*time.Second, "(optional) call stats report period")

	return cmd
}

// runREPL reads commands line by line until EOF, "quit" or ctx is done.
func runREPL(ctx context.Context, dash *client.Dashboard, in io.Reader, out io.Writer, logger *slog.Logger) {
	linesCh := make(chan string)
	go func() {
		defer close(linesCh)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			linesCh <- scanner.Text()
		}
	}()

	for {
		fmt.Fprintf(out, "%s> ", dash.State())

		select {
		case <-ctx.Done():
			return
		case line, ok := <-linesCh:
			if !ok {
				return
			}
			if quit := handleCommand(ctx, dash, strings.TrimSpace(line), out, logger); quit {
				return
			}
		}
	}
}

// handleCommand runs a single dashboard command, outcomes are reported by the notifier.
func handleCommand(ctx context.Context, dash *client.Dashboard, line string, out io.Writer, logger *slog.Logger) bool {
	name, rest, _ := strings.Cut(line, " ")
	rest = strings.TrimSpace(rest)
	fields := strings.Fields(rest)
	d := dash.Dispatcher()

	var err error
	switch name {
	case "":
	case "quit", "exit":
		return true
	case "help":
		fmt.Fprint(out, dashboardHelp)
	case "login":
		role, parseErr := model.ParseRole(rest)
		if parseErr != nil {
			fmt.Fprintln(out, parseErr)
			return false
		}
		err = dash.Identity().Login(ctx, role)
	case "logout":
		err = dash.Identity().Logout(ctx)
	case "whoami":
		id, found := dash.Session().Identity()
		if !found {
			fmt.Fprintln(out, model.AnonymousPrincipal)
			return false
		}
		role := dash.Session().Role()
		if role == "" {
			role = "no role"
		}
		fmt.Fprintf(out, "%s (%s), expires at %s\n", id.Principal, role, id.ExpiresAt.Format(time.RFC3339))
	case "list":
		fmt.Fprint(out, dash.Snapshot())
	case "refresh":
		if _, err = dash.Resync(ctx); err != nil {
			fmt.Fprintln(out, err)
		}
	case "create-course":
		title, description, _ := strings.Cut(rest, "|")
		_, err = d.CreateCourse(ctx, title, description)
	case "propose":
		_, err = d.ProposeVote(ctx, rest)
	case "up", "down", "decline":
		voteId, parseErr := model.ParseVoteRequestId(rest)
		if parseErr != nil {
			fmt.Fprintln(out, parseErr)
			return false
		}
		switch name {
		case "up":
			err = d.Upvote(ctx, voteId)
		case "down":
			err = d.Downvote(ctx, voteId)
		default:
			err = d.DeclineVoteRequest(ctx, voteId)
		}
	case "enroll", "dropout":
		if len(fields) != 2 {
			fmt.Fprintf(out, "usage: %s <principal> <courseId>\n", name)
			return false
		}
		if name == "enroll" {
			err = d.EnrollStudent(ctx, model.Principal(fields[0]), fields[1])
		} else {
			err = d.DropoutStudent(ctx, model.Principal(fields[0]), fields[1])
		}
	case "enrollments":
		enrollments, listErr := d.Enrollments(ctx)
		for _, e := range enrollments {
			fmt.Fprintf(out, "- course %d\n", e.CourseId)
		}
		err = listErr
	case "stats":
		stats := dash.Stats()
		methods := make([]string, 0, len(stats))
		for method := range stats {
			methods = append(methods, method)
		}
		sort.Strings(methods)
		for _, method := range methods {
			s := stats[method]
			fmt.Fprintf(out, "%s: %d calls, %d failures, %.2f ms avg\n", method, s.Calls, s.Failures, s.AvgDurMs)
		}
	default:
		fmt.Fprintf(out, "unknown command %q (type help)\n", name)
	}

	if err != nil {
		logger.Debug("command failed", "command", name, "error", err)
	}

	return false
}

func init() {
	rootCmd.AddCommand(GetDashboardCmd())
}
