package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/solmari/civassist/internal/profile"
	"github.com/solmari/civassist/plugin/assistant"
	"github.com/solmari/civassist/plugin/assistant/chat"
	"github.com/solmari/civassist/plugin/assistant/intent"
	"github.com/solmari/civassist/plugin/assistant/knowledge"
	"github.com/solmari/civassist/plugin/assistant/session"
	"github.com/solmari/civassist/plugin/assistant/state"
	"github.com/solmari/civassist/plugin/assistant/workflow"
	"github.com/solmari/civassist/server"
	"github.com/solmari/civassist/server/ai"
	"github.com/solmari/civassist/server/channel"
	"github.com/solmari/civassist/store"
	"github.com/solmari/civassist/store/db"
	"github.com/solmari/civassist/store/kv"
)

const (
	greetingBanner = `
 ██████╗██╗██╗   ██╗ █████╗ ███████╗███████╗██╗███████╗████████╗
██╔════╝██║██║   ██║██╔══██╗██╔════╝██╔════╝██║██╔════╝╚══██╔══╝
██║     ██║██║   ██║███████║███████╗███████╗██║███████╗   ██║
██║     ██║╚██╗ ██╔╝██╔══██║╚════██║╚════██║██║╚════██║   ██║
╚██████╗██║ ╚████╔╝ ██║  ██║███████║███████║██║███████║   ██║
 ╚═════╝╚═╝  ╚═══╝  ╚═╝  ╚═╝╚══════╝╚══════╝╚═╝╚══════╝   ╚═╝
`
)

var (
	instanceProfile *profile.Profile

	rootCmd = &cobra.Command{
		Use:   "civassist",
		Short: "A multi-channel conversational assistant for municipal services",
		Run: func(_ *cobra.Command, _ []string) {
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			instance, err := buildServer(instanceProfile)
			if err != nil {
				cancel()
				slog.Error("failed to create server", "error", err)
				return
			}

			c := make(chan os.Signal, 1)
			signal.Notify(c, os.Interrupt, syscall.SIGTERM)
			go func() {
				sig := <-c
				slog.Info("received signal, shutting down", "signal", sig.String())
				instance.Shutdown(ctx)
				cancel()
			}()

			printGreetings(instanceProfile)
			if err := instance.Start(ctx); err != nil {
				if ctx.Err() == nil {
					slog.Error("failed to start server", "error", err)
					cancel()
				}
			}

			<-ctx.Done()
		},
	}
)

// buildServer wires the storage, session, workflow and AI layers together.
func buildServer(prof *profile.Profile) (*server.Server, error) {
	dbDriver, err := db.NewDBDriver(prof)
	if err != nil {
		return nil, err
	}
	storeInstance := store.New(dbDriver)

	// Durable KV tier for sessions and workflow state. Without Redis the
	// process-local tier is authoritative and restarts drop live sessions.
	var sessionKV kv.KV = kv.NewMemory()
	if prof.RedisAddr != "" {
		sessionKV = kv.NewTiered(kv.NewMemory(), kv.NewRedis(kv.RedisConfig{
			Addr:     prof.RedisAddr,
			Password: prof.RedisPassword,
		}))
	}

	sessionStore := session.NewStore(session.Config{
		KV:                      sessionKV,
		AcceptUnverifiedHandoff: prof.AcceptUnverifiedHandoff,
	})
	machine := state.NewMachine(sessionKV)

	var provider ai.Provider
	if prof.IsAIEnabled() {
		primary := ai.NewOpenAIProvider(&ai.Config{
			Name:    "primary",
			BaseURL: prof.AIPrimaryBaseURL,
			APIKey:  prof.AIPrimaryAPIKey,
			Model:   prof.AIPrimaryModel,
		})
		var secondary ai.Provider
		if prof.AISecondaryAPIKey != "" {
			secondary = ai.NewOpenAIProvider(&ai.Config{
				Name:    "secondary",
				BaseURL: prof.AISecondaryBaseURL,
				APIKey:  prof.AISecondaryAPIKey,
				Model:   prof.AISecondaryModel,
			})
		}
		provider = ai.NewFallbackChain(primary, secondary)
	} else {
		slog.Warn("no AI provider configured, chat replies degrade to apologies")
		provider = ai.NewFallbackChain()
	}

	var retriever knowledge.Retriever
	if prof.KnowledgeURL != "" {
		retriever = knowledge.NewHTTPRetriever(prof.KnowledgeURL)
	}

	processor := chat.NewProcessor(sessionStore, retriever, provider, storeInstance)
	matcher := intent.NewMatcher(storeInstance)
	appointmentFlow := workflow.NewAppointmentFlow(storeInstance, machine)
	requestFlow := workflow.NewServiceRequestFlow(storeInstance, machine)
	engine := assistant.NewEngine(sessionStore, machine, matcher, appointmentFlow, requestFlow, processor)

	var sender *channel.SocialSender
	if prof.SocialAccessToken != "" {
		sender = channel.NewSocialSender(channel.SocialSenderConfig{
			AccessToken: prof.SocialAccessToken,
		})
	}

	return server.NewServer(prof, storeInstance, engine, sender, sessionStore, machine), nil
}

func printGreetings(prof *profile.Profile) {
	fmt.Print(greetingBanner)
	fmt.Printf("Version %s has been started on port %d\n", prof.Version, prof.Port)
	if prof.InstanceURL != "" {
		fmt.Printf("Instance URL: %s\n", prof.InstanceURL)
	}
}

func init() {
	viper.SetDefault("mode", "dev")
	viper.SetDefault("driver", "sqlite")
	viper.SetDefault("addr", "")
	viper.SetDefault("port", 8081)

	rootCmd.PersistentFlags().String("mode", "dev", `mode of server, can be "prod" or "dev" or "demo"`)
	rootCmd.PersistentFlags().String("addr", "", "address of server")
	rootCmd.PersistentFlags().Int("port", 8081, "port of server")
	rootCmd.PersistentFlags().String("data", "", "data directory")
	rootCmd.PersistentFlags().String("driver", "sqlite", `database driver, can be "sqlite" or "memory"`)
	rootCmd.PersistentFlags().String("dsn", "", "database source name")
	rootCmd.PersistentFlags().String("instance-url", "", "the url of your instance")

	if err := viper.BindPFlag("mode", rootCmd.PersistentFlags().Lookup("mode")); err != nil {
		panic(err)
	}
	if err := viper.BindPFlag("addr", rootCmd.PersistentFlags().Lookup("addr")); err != nil {
		panic(err)
	}
	if err := viper.BindPFlag("port", rootCmd.PersistentFlags().Lookup("port")); err != nil {
		panic(err)
	}
	if err := viper.BindPFlag("data", rootCmd.PersistentFlags().Lookup("data")); err != nil {
		panic(err)
	}
	if err := viper.BindPFlag("driver", rootCmd.PersistentFlags().Lookup("driver")); err != nil {
		panic(err)
	}
	if err := viper.BindPFlag("dsn", rootCmd.PersistentFlags().Lookup("dsn")); err != nil {
		panic(err)
	}
	if err := viper.BindPFlag("instance-url", rootCmd.PersistentFlags().Lookup("instance-url")); err != nil {
		panic(err)
	}

	viper.SetEnvPrefix("civassist")
	viper.AutomaticEnv()

	cobra.OnInitialize(func() {
		instanceProfile = &profile.Profile{
			Mode:        viper.GetString("mode"),
			Addr:        viper.GetString("addr"),
			Port:        viper.GetInt("port"),
			Data:        viper.GetString("data"),
			Driver:      viper.GetString("driver"),
			DSN:         viper.GetString("dsn"),
			InstanceURL: viper.GetString("instance-url"),
			Version:     version,
		}
		instanceProfile.FromEnv()
		if err := instanceProfile.Validate(); err != nil {
			slog.Error("invalid profile", "error", err)
			os.Exit(1)
		}

		level := slog.LevelInfo
		if instanceProfile.IsDev() {
			level = slog.LevelDebug
		}
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})))
	})
}

const version = "0.1.0"

func main() {
	if err := rootCmd.Execute(); err != nil {
		slog.Error("failed to run command", "error", err)
		os.Exit(1)
	}
}
