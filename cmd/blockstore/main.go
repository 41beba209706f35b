package main

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	rdns "github.com/folbricht/blockstore"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

type options struct {
	logLevel string
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var opt options
	cmd := &cobra.Command{
		Use:   "blockstore <config>",
		Short: "DNS blocklist filter",
		Long: `DNS blocklist filter.

Loads one or more domain blocklists into memory and
answers DNS queries for any listed domain, or any of
its subdomains, with NXDOMAIN. Everything else is
forwarded to an upstream resolver.

Blocklists are plain text with one domain per line.
Loading several lists merges them.
`,
		Example:      `  blockstore config.toml`,
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return start(opt, args)
		},
	}
	cmd.PersistentFlags().StringVar(&opt.logLevel, "log-level", "", "log level, overrides the config file")
	cmd.AddCommand(newCheckCommand(&opt))
	return cmd
}

func newCheckCommand(opt *options) *cobra.Command {
	var lists []string
	cmd := &cobra.Command{
		Use:          "check --list <file> <domain>...",
		Short:        "Check domains against blocklist files",
		Example:      `  blockstore check --list ads.txt --list malware.txt www.example.com`,
		Args:         cobra.MinimumNArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := configureLogging(logConfig{Level: "warning"}, opt.logLevel); err != nil {
				return err
			}
			return check(cmd.OutOrStdout(), lists, args)
		},
	}
	cmd.Flags().StringArrayVar(&lists, "list", nil, "blocklist file, can be repeated")
	_ = cmd.MarkFlagRequired("list")
	return cmd
}

// check loads all lists into one store and prints a verdict for each domain.
func check(w io.Writer, lists, domains []string) error {
	store := rdns.NewStore("check")
	var failed int
	for _, name := range lists {
		if !store.LoadBlocklist(name) {
			failed++
		}
	}
	for _, domain := range domains {
		verdict := "allowed"
		if store.IsBlocked(domain) {
			verdict = "blocked"
		}
		fmt.Fprintf(w, "%s %s\n", domain, verdict)
	}
	if failed > 0 {
		return fmt.Errorf("failed to load %d of %d blocklists", failed, len(lists))
	}
	return nil
}

func start(opt options, args []string) error {
	config, err := loadConfig(args[0])
	if err != nil {
		return err
	}
	if err := configureLogging(config.Log, opt.logLevel); err != nil {
		return err
	}

	store := rdns.NewStore("main")
	if err := loadBlocklists(store, config.Blocklists); err != nil {
		return err
	}

	listeners, err := buildListeners(config, store)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return serve(ctx, listeners)
}

// configureLogging applies the log level and syslog settings to the library
// logger. A non-empty override takes precedence over the configured level.
func configureLogging(c logConfig, override string) error {
	level := c.Level
	if override != "" {
		level = override
	}
	if level == "" {
		level = "info"
	}
	l, err := logrus.ParseLevel(level)
	if err != nil {
		return err
	}
	rdns.Log.SetLevel(l)

	if c.Syslog != nil {
		hook, err := rdns.NewSyslogHook(rdns.SyslogOptions{
			Network: c.Syslog.Network,
			Address: c.Syslog.Address,
			Tag:     c.Syslog.Tag,
			Level:   l,
		})
		if err != nil {
			return errors.Wrap(err, "failed to initialize syslog")
		}
		rdns.Log.AddHook(hook)
	}
	return nil
}

// loadBlocklists loads all configured lists into the store concurrently. Loads
// are serialized by the store and their entries are merged.
func loadBlocklists(store *rdns.Store, lists map[string]blocklist) error {
	var g errgroup.Group
	for id, b := range lists {
		id, b := id, b
		src, err := newSource(id, b)
		if err != nil {
			return err
		}
		g.Go(func() error {
			log := rdns.Log.WithFields(logrus.Fields{"id": id, "source": src.String()})
			n, err := store.Load(src)
			if err != nil {
				if b.AllowFailure {
					log.WithError(err).Warn("failed to load blocklist, continuing without it")
					return nil
				}
				return fmt.Errorf("failed to load blocklist '%s': %w", id, err)
			}
			log.WithField("entries", n).Info("loaded blocklist")
			return nil
		})
	}
	return g.Wait()
}

func newSource(id string, b blocklist) (rdns.Source, error) {
	switch b.Source {
	case "file":
		if b.Location == "" {
			return nil, fmt.Errorf("blocklist '%s' requires a location", id)
		}
		return rdns.NewFileSource(b.Location), nil
	case "http":
		if b.Location == "" {
			return nil, fmt.Errorf("blocklist '%s' requires a location", id)
		}
		return rdns.NewHTTPSource(b.Location), nil
	case "static", "":
		return rdns.NewStaticSource(id, b.Rules), nil
	default:
		return nil, fmt.Errorf("unsupported source '%s' for blocklist '%s'", b.Source, id)
	}
}

// buildListeners instantiates the upstream resolvers and the listeners that
// reference them. Every DNS listener filters queries through the store.
func buildListeners(config config, store *rdns.Store) ([]rdns.Listener, error) {
	resolvers := make(map[string]rdns.Resolver)
	for id, r := range config.Resolvers {
		client, err := rdns.NewDNSClient(id, r.Address, r.Protocol, rdns.DNSClientOptions{})
		if err != nil {
			return nil, fmt.Errorf("failed to parse resolver config for '%s' : %s", id, err)
		}
		resolvers[id] = client
	}

	var listeners []rdns.Listener
	for id, l := range config.Listeners {
		upstream, ok := resolvers[l.Resolver]
		if !ok {
			return nil, fmt.Errorf("listener '%s' references non-existant resolver '%s'", id, l.Resolver)
		}
		var opt rdns.BlocklistOptions
		if l.BlocklistResolver != "" {
			r, ok := resolvers[l.BlocklistResolver]
			if !ok {
				return nil, fmt.Errorf("listener '%s' references non-existant blocklist-resolver '%s'", id, l.BlocklistResolver)
			}
			opt.BlocklistResolver = r
		}
		allowedNet, err := parseAllowedNet(l.AllowedNet)
		if err != nil {
			return nil, fmt.Errorf("listener '%s' has invalid allowed-net: %s", id, err)
		}
		bl, err := rdns.NewBlocklist(id, store, upstream, opt)
		if err != nil {
			return nil, err
		}
		switch l.Protocol {
		case "tcp", "udp":
			listeners = append(listeners, rdns.NewDNSListener(id, l.Address, l.Protocol, rdns.ListenOptions{AllowedNet: allowedNet}, bl))
		default:
			return nil, fmt.Errorf("unsupported protocol '%s' for listener '%s'", l.Protocol, id)
		}
	}

	if config.Admin.Address != "" {
		admin, err := newAdminListener(config.Admin, store)
		if err != nil {
			return nil, err
		}
		listeners = append(listeners, admin)
	}
	if len(listeners) == 0 {
		return nil, errors.New("no listeners configured")
	}
	return listeners, nil
}

func newAdminListener(a admin, store *rdns.Store) (*rdns.AdminListener, error) {
	allowedNet, err := parseAllowedNet(a.AllowedNet)
	if err != nil {
		return nil, fmt.Errorf("admin has invalid allowed-net: %s", err)
	}
	opt := rdns.AdminListenerOptions{
		ListenOptions: rdns.ListenOptions{AllowedNet: allowedNet},
		AllowLoad:     a.AllowLoad,
	}
	if a.ServerCrt != "" || a.ServerKey != "" {
		opt.TLSConfig, err = rdns.TLSServerConfig(a.CA, a.ServerCrt, a.ServerKey, a.MutualTLS)
		if err != nil {
			return nil, fmt.Errorf("failed to load admin tls config: %s", err)
		}
	}
	return rdns.NewAdminListener("admin", a.Address, store, opt), nil
}

func parseAllowedNet(nets []string) ([]*net.IPNet, error) {
	var allowedNet []*net.IPNet
	for _, s := range nets {
		_, n, err := net.ParseCIDR(s)
		if err != nil {
			return nil, err
		}
		allowedNet = append(allowedNet, n)
	}
	return allowedNet, nil
}

// serve runs all listeners until the context is done or one of them fails,
// then stops the rest.
func serve(ctx context.Context, listeners []rdns.Listener) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, l := range listeners {
		l := l
		g.Go(func() error {
			if err := l.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("listener '%s' failed: %w", l, err)
			}
			return nil
		})
	}
	g.Go(func() error {
		<-ctx.Done()
		for _, l := range listeners {
			if err := l.Stop(); err != nil {
				rdns.Log.WithField("id", l.String()).WithError(err).Debug("failed to stop listener")
			}
		}
		return nil
	})
	return g.Wait()
}
