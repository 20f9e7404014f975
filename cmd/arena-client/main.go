// Command arena-client runs headless players against a rotateio server, or
// against the offline simulation when no server is reachable.
package main

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"

	"rotateio-server/internal/bot"
	"rotateio-server/internal/client"
	"rotateio-server/internal/protocol"
	"rotateio-server/internal/sim"
)

const inputEvery = 200 * time.Millisecond

func main() {
	url := pflag.String("url", "ws://localhost:8080/ws", "server websocket URL")
	secret := pflag.String("secret", "", "JWT secret used to mint one token per client")
	token := pflag.String("token", "", "use this token for every client instead of minting")
	clients := pflag.IntP("clients", "n", 5, "number of simulated players")
	matchID := pflag.String("match", "", "match to join (default main)")
	binary := pflag.Bool("msgpack", false, "request msgpack snapshots")
	offline := pflag.Bool("offline", false, "play one local match against bots")
	mode := pflag.String("mode", string(bot.FFA), "offline mode: FFA, 1v50, 20v20")
	difficulty := pflag.String("difficulty", string(bot.Medium), "offline bot difficulty")
	duration := pflag.Duration("duration", 0, "stop after this long (0 runs until interrupted)")
	level := pflag.String("log-level", "info", "log level")
	pflag.Parse()

	lvl, err := zerolog.ParseLevel(*level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.Kitchen}).
		Level(lvl).With().Timestamp().Logger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if *duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, *duration)
		defer cancel()
	}

	n := *clients
	if *offline {
		n = 1
	}
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		cfg := client.Config{
			URL:        *url,
			Guest:      true,
			Name:       fmt.Sprintf("Sim%d", i+1),
			MatchID:    *matchID,
			Binary:     *binary,
			Mode:       bot.ParseMode(*mode),
			Difficulty: bot.ParseDifficulty(*difficulty),
			Seed:       uint64(i + 1),
		}
		if !*offline {
			cfg.Token = *token
			if cfg.Token == "" && *secret != "" {
				cfg.Token, err = mintToken(*secret, fmt.Sprintf("sim-%d", i), cfg.Name)
				if err != nil {
					log.Fatal().Err(err).Msg("minting token")
				}
			}
		}

		s := client.NewSession(cfg, log.With().Str("sim", cfg.Name).Logger())
		if err := s.Start(ctx); err != nil {
			log.Fatal().Err(err).Str("sim", cfg.Name).Msg("start")
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			play(ctx, s, log.With().Str("sim", cfg.Name).Logger(), uint64(i+1))
		}()
	}
	wg.Wait()
	log.Info().Msg("done")
}

func mintToken(secret, subject, name string) (string, error) {
	now := time.Now()
	return jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  subject,
		"name": name,
		"iat":  now.Unix(),
		"exp":  now.Add(24 * time.Hour).Unix(),
	}).SignedString([]byte(secret))
}

// play sends random input every inputEvery and logs kill-feed additions
// and the local score
func play(ctx context.Context, s *client.Session, log zerolog.Logger, seed uint64) {
	rng := rand.New(rand.NewPCG(seed, seed*31))
	ticker := time.NewTicker(inputEvery)
	defer ticker.Stop()

	var lastKill protocol.KillMsg
	lastScore := -1
	weapons := sim.Weapons()
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.Done():
			return
		case <-ticker.C:
		}

		angle := rng.Float64() * 2 * math.Pi
		s.Move(math.Cos(angle)*sim.BaseSpeed, math.Sin(angle)*sim.BaseSpeed, angle)
		if rng.Float64() < 0.3 {
			s.Shoot()
		}
		if rng.Float64() < 0.1 {
			s.UseAbility(nil)
		}

		view := s.View()
		if feed := view.KillFeed(); len(feed) > 0 && feed[0] != lastKill {
			lastKill = feed[0]
			log.Info().Str("killer", lastKill.KillerName).Str("victim", lastKill.VictimName).Msg("kill")
		}
		me, ok := view.Local()
		if !ok {
			continue
		}
		if me.Score != lastScore {
			lastScore = me.Score
			log.Info().Int("score", me.Score).Int("kills", me.Kills).Int("deaths", me.Deaths).
				Int("coins", me.Coins).Bool("offline", s.Offline()).Msg("score")
		}
		// spend coins on the best affordable upgrade
		for i := len(weapons) - 1; i > 0; i-- {
			if w := weapons[i]; w.Price <= me.Coins && w.Kind != me.Weapon {
				s.BuyWeapon(w.Kind)
				break
			}
		}
	}
}
