// Package hubctl implements the operator command line for AutomateHub.
package hubctl

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	entrypoint "github.com/automatehub/automatehub/internal/platform/cmd"
	"github.com/automatehub/automatehub/internal/platform/config"
	"github.com/automatehub/automatehub/internal/platform/events"
	platformgrpc "github.com/automatehub/automatehub/internal/platform/grpc"
	"github.com/automatehub/automatehub/internal/platform/logging"
	"github.com/automatehub/automatehub/internal/services/hub/api/rest"
	"github.com/automatehub/automatehub/internal/services/hub/app"
	"github.com/automatehub/automatehub/internal/services/hub/domain"
	"github.com/automatehub/automatehub/internal/services/hub/domain/account"
	"github.com/automatehub/automatehub/internal/services/hub/domain/expert"
	"github.com/automatehub/automatehub/internal/services/hub/domain/project"
	"github.com/automatehub/automatehub/internal/services/hub/storage/sqlite"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Options holds the persistent flags shared by every subcommand.
type Options struct {
	DBPath   string `env:"AUTOMATEHUB_DB_PATH"   envDefault:"data/automatehub.db"`
	LogLevel string `env:"AUTOMATEHUB_LOG_LEVEL" envDefault:"warn"`

	KafkaBrokers     string `env:"AUTOMATEHUB_KAFKA_BROKERS"`
	KafkaTopicPrefix string `env:"AUTOMATEHUB_KAFKA_TOPIC_PREFIX" envDefault:"automatehub"`
}

// NewRootCommand builds the hubctl command tree writing results to out.
func NewRootCommand(out io.Writer) *cobra.Command {
	var opts Options
	if err := entrypoint.ParseConfig(&opts); err != nil {
		opts.DBPath = "data/automatehub.db"
		opts.LogLevel = "warn"
		opts.KafkaTopicPrefix = "automatehub"
	}

	root := &cobra.Command{
		Use:   entrypoint.ServiceHubctl,
		Short: "Operate an AutomateHub deployment",
		Long: `hubctl runs maintenance tasks against the AutomateHub database:
applying migrations, loading fixtures, granting roles and reading
marketplace statistics. It can also check a running hub over gRPC health.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(out)
	root.PersistentFlags().StringVar(&opts.DBPath, "db-path", opts.DBPath, "SQLite database path")
	root.PersistentFlags().StringVar(&opts.LogLevel, "log-level", opts.LogLevel, "log level")

	root.AddCommand(
		newMigrateCommand(&opts),
		newSeedCommand(&opts),
		newGrantRoleCommand(&opts),
		newStatsCommand(&opts),
		newHealthCommand(&opts),
	)
	return root
}

// Execute runs the command tree with os.Args.
func Execute(ctx context.Context) error {
	return NewRootCommand(os.Stdout).ExecuteContext(ctx)
}

// env is an opened store plus the domain services over it.
type env struct {
	logger   *zap.Logger
	store    *sqlite.Store
	services rest.Services
}

func openEnv(opts *Options) (*env, error) {
	logger, err := logging.New(entrypoint.ServiceHubctl, opts.LogLevel, logging.FormatConsole)
	if err != nil {
		return nil, err
	}
	store, err := app.OpenStore(opts.DBPath)
	if err != nil {
		return nil, err
	}
	services := app.NewServices(store, nil, events.Nop{}, logger, app.ServiceOptions{})
	return &env{logger: logger, store: store, services: services}, nil
}

func (e *env) Close() {
	_ = e.store.Close()
	_ = e.logger.Sync()
}

func newMigrateCommand(opts *Options) *cobra.Command {
	var (
		kafkaTopics bool
		partitions  int
	)
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending migrations and print their status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := openEnv(opts)
			if err != nil {
				return err
			}
			defer e.Close()

			out := cmd.OutOrStdout()
			for _, name := range e.store.AppliedMigrations() {
				fmt.Fprintf(out, "applied %s\n", name)
			}
			status, err := e.store.MigrationStatus(cmd.Context())
			if err != nil {
				return fmt.Errorf("migration status: %w", err)
			}
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "MIGRATION\tAPPLIED\tAT")
			for _, m := range status {
				at := "-"
				if m.Applied && !m.AppliedAt.IsZero() {
					at = m.AppliedAt.UTC().Format(time.RFC3339)
				}
				fmt.Fprintf(tw, "%s\t%t\t%s\n", m.Name, m.Applied, at)
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			if !kafkaTopics {
				return nil
			}
			if err := events.EnsureTopics(cmd.Context(), config.SplitList(opts.KafkaBrokers), opts.KafkaTopicPrefix, partitions); err != nil {
				return err
			}
			for _, family := range events.Families {
				fmt.Fprintf(out, "topic %s\n", events.TopicName(opts.KafkaTopicPrefix, family))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&kafkaTopics, "kafka-topics", false, "also create the event topics on the Kafka cluster")
	cmd.Flags().StringVar(&opts.KafkaBrokers, "kafka-brokers", opts.KafkaBrokers, "comma separated Kafka brokers")
	cmd.Flags().StringVar(&opts.KafkaTopicPrefix, "kafka-topic-prefix", opts.KafkaTopicPrefix, "Kafka topic prefix")
	cmd.Flags().IntVar(&partitions, "kafka-partitions", 1, "partitions per created topic")
	return cmd
}

// Fixtures is the seed file layout.
type Fixtures struct {
	Users    []UserFixture    `yaml:"users"`
	Projects []ProjectFixture `yaml:"projects"`
}

// UserFixture is one seeded account. Admin users are registered as clients
// and promoted.
type UserFixture struct {
	Email    string         `yaml:"email"`
	Password string         `yaml:"password"`
	Name     string         `yaml:"name"`
	Role     string         `yaml:"role"`
	Expert   *ExpertFixture `yaml:"expert,omitempty"`
}

// ExpertFixture fills an expert profile.
type ExpertFixture struct {
	Headline        string   `yaml:"headline"`
	Bio             string   `yaml:"bio"`
	Skills          []string `yaml:"skills"`
	Platforms       []string `yaml:"platforms"`
	HourlyRateCents int64    `yaml:"hourly_rate_cents"`
	Availability    string   `yaml:"availability"`
	Verified        bool     `yaml:"verified"`
}

// ProjectFixture is one project posted by an existing client.
type ProjectFixture struct {
	ClientEmail string   `yaml:"client_email"`
	Title       string   `yaml:"title"`
	Description string   `yaml:"description"`
	Platforms   []string `yaml:"platforms"`
	BudgetCents int64    `yaml:"budget_cents"`
}

// SeedResult counts what a seed run changed.
type SeedResult struct {
	UsersCreated    int `json:"users_created"`
	UsersSkipped    int `json:"users_skipped"`
	ProjectsCreated int `json:"projects_created"`
	ProjectsSkipped int `json:"projects_skipped"`
}

// ParseFixtures decodes a YAML fixture document, rejecting unknown keys.
func ParseFixtures(r io.Reader) (Fixtures, error) {
	var fixtures Fixtures
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&fixtures); err != nil {
		if errors.Is(err, io.EOF) {
			return Fixtures{}, nil
		}
		return Fixtures{}, fmt.Errorf("decode fixtures: %w", err)
	}
	return fixtures, nil
}

// Seed loads fixtures through the domain services. Users whose email is
// already registered and projects the client already posted under the same
// title are skipped, so reruns change nothing.
func Seed(ctx context.Context, services rest.Services, fixtures Fixtures) (SeedResult, error) {
	var result SeedResult
	for _, f := range fixtures.Users {
		role := f.Role
		if role == string(domain.RoleAdmin) {
			role = string(domain.RoleClient)
		}
		user, err := services.Accounts.Register(ctx, account.RegisterInput{
			Email:    f.Email,
			Password: f.Password,
			Name:     f.Name,
			Role:     role,
		})
		if errors.Is(err, account.ErrEmailTaken) {
			result.UsersSkipped++
			continue
		}
		if err != nil {
			return result, fmt.Errorf("seed user %s: %w", f.Email, err)
		}
		result.UsersCreated++

		if f.Role == string(domain.RoleAdmin) {
			if _, err := services.Accounts.SetRole(ctx, nil, user.ID, f.Role); err != nil {
				return result, fmt.Errorf("promote %s: %w", f.Email, err)
			}
		}
		if f.Expert != nil && user.Role == domain.RoleExpert {
			if err := seedExpert(ctx, services, user, *f.Expert); err != nil {
				return result, fmt.Errorf("seed expert %s: %w", f.Email, err)
			}
		}
	}

	for _, f := range fixtures.Projects {
		client, err := services.Accounts.FindByEmail(ctx, f.ClientEmail)
		if err != nil {
			return result, fmt.Errorf("project %q client %s: %w", f.Title, f.ClientEmail, err)
		}
		actor := domain.Actor{UserID: client.ID, Role: client.Role}
		exists, err := hasProjectTitled(ctx, services.Projects, actor, f.Title)
		if err != nil {
			return result, fmt.Errorf("project %q: %w", f.Title, err)
		}
		if exists {
			result.ProjectsSkipped++
			continue
		}
		if _, err := services.Projects.Create(ctx, actor, project.CreateInput{
			Title:       f.Title,
			Description: f.Description,
			Platforms:   f.Platforms,
			BudgetCents: f.BudgetCents,
		}); err != nil {
			return result, fmt.Errorf("seed project %q: %w", f.Title, err)
		}
		result.ProjectsCreated++
	}
	return result, nil
}

func hasProjectTitled(ctx context.Context, projects *project.Service, client domain.Actor, title string) (bool, error) {
	title = strings.TrimSpace(title)
	token := ""
	for {
		page, err := projects.ListForUser(ctx, client, "", 100, token)
		if err != nil {
			return false, err
		}
		for _, p := range page.Projects {
			if p.ClientID == client.UserID && p.Title == title {
				return true, nil
			}
		}
		if page.NextPageToken == "" {
			return false, nil
		}
		token = page.NextPageToken
	}
}

func seedExpert(ctx context.Context, services rest.Services, user account.User, f ExpertFixture) error {
	input := expert.UpdateInput{
		Headline:  &f.Headline,
		Bio:       &f.Bio,
		Skills:    f.Skills,
		Platforms: f.Platforms,
	}
	if f.HourlyRateCents > 0 {
		input.HourlyRateCents = &f.HourlyRateCents
	}
	if f.Availability != "" {
		input.Availability = &f.Availability
	}
	if _, err := services.Experts.UpdateProfile(ctx, domain.Actor{UserID: user.ID, Role: user.Role}, input); err != nil {
		return err
	}
	if f.Verified {
		operator := domain.Actor{Role: domain.RoleAdmin}
		if _, err := services.Experts.SetVerified(ctx, operator, user.ID, true); err != nil {
			return err
		}
	}
	return nil
}

func newSeedCommand(opts *Options) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load users, expert profiles and projects from a YAML file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			f, err := os.Open(file)
			if err != nil {
				return fmt.Errorf("open fixtures: %w", err)
			}
			defer f.Close()
			fixtures, err := ParseFixtures(f)
			if err != nil {
				return err
			}

			e, err := openEnv(opts)
			if err != nil {
				return err
			}
			defer e.Close()

			result, err := Seed(cmd.Context(), e.services, fixtures)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), result)
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "fixtures.yaml", "fixture file")
	return cmd
}

func newGrantRoleCommand(opts *Options) *cobra.Command {
	var email, role string
	cmd := &cobra.Command{
		Use:   "grant-role",
		Short: "Change the role of an existing user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := openEnv(opts)
			if err != nil {
				return err
			}
			defer e.Close()

			user, err := e.services.Accounts.FindByEmail(cmd.Context(), email)
			if err != nil {
				return fmt.Errorf("find %s: %w", email, err)
			}
			updated, err := e.services.Accounts.SetRole(cmd.Context(), nil, user.ID, role)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s is now %s\n", updated.Email, updated.Role)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "user email")
	cmd.Flags().StringVar(&role, "role", "", "new role (client, expert, admin)")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("role")
	return cmd
}

func newStatsCommand(opts *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print marketplace statistics as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := openEnv(opts)
			if err != nil {
				return err
			}
			defer e.Close()

			stats, err := e.services.Dashboard.Collect(cmd.Context())
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), stats)
		},
	}
}

func newHealthCommand(opts *Options) *cobra.Command {
	var addr string
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "health",
		Short: "Wait until a running hub reports SERVING over gRPC health",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger, err := logging.New(entrypoint.ServiceHubctl, opts.LogLevel, logging.FormatConsole)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			conn, err := platformgrpc.DialWithHealth(ctx, addr, app.HealthService, logger)
			if err != nil {
				return err
			}
			defer conn.Close()
			fmt.Fprintf(cmd.OutOrStdout(), "%s serving at %s\n", app.HealthService, addr)
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "localhost:8081", "hub gRPC address")
	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Second, "how long to wait")
	return cmd
}

func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
