package main

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/url"
	"path/filepath"
	"regexp"

	"github.com/gorilla/websocket"
	"github.com/skip2/go-qrcode"

	"rotateio-server/internal/protocol"
)

const (
	historyLimit = 20
	qrSize       = 256
)

var uuidPathRe = regexp.MustCompile(`^/[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true // Non-browser clients don't send Origin
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		return u.Host == r.Host
	},
}

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type authResponse struct {
	Token     string `json:"token"`
	AccountID string `json:"accountId"`
	Username  string `json:"username"`
}

type profileResponse struct {
	Name    string            `json:"name"`
	Stats   StatsRow          `json:"stats"`
	Matches []MatchHistoryRow `json:"matches"`
}

func extractIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, protocol.ErrorMsg{Msg: msg})
}

// SetupRoutes configures HTTP routes
func SetupRoutes(hub *Hub, clientDir, publicURL string) *http.ServeMux {
	mux := http.NewServeMux()

	// Serve static files with no-cache so browsers always revalidate
	fs := http.FileServer(http.Dir(clientDir))
	mux.Handle("/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-cache")
		// SPA: serve index.html for root and match-id paths
		if r.URL.Path == "/" || uuidPathRe.MatchString(r.URL.Path) {
			http.ServeFile(w, r, filepath.Join(clientDir, "index.html"))
			return
		}
		fs.ServeHTTP(w, r)
	}))

	// WebSocket endpoint; the credential is checked before the upgrade
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		claims, err := hub.auth.Authenticate(r)
		if err != nil {
			hub.log.Debug().Err(err).Str("ip", extractIP(r)).Msg("rejected connection")
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		ip := extractIP(r)
		if !hub.CanAccept(ip) {
			http.Error(w, "too many connections", http.StatusServiceUnavailable)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			hub.log.Debug().Err(err).Msg("upgrade")
			return
		}

		hub.TrackConnect(ip)

		client := NewClient(hub, conn, claims, ip, r.URL.Query().Get("enc") == "msgpack")
		hub.register <- client

		go client.WritePump()
		go client.ReadPump()
	})

	mux.HandleFunc("POST /api/signup", func(w http.ResponseWriter, r *http.Request) {
		var req credentials
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "bad request")
			return
		}
		id, token, err := hub.auth.Register(req.Username, req.Password)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeJSON(w, http.StatusCreated, authResponse{Token: token, AccountID: accountKey(id), Username: req.Username})
	})

	mux.HandleFunc("POST /api/login", func(w http.ResponseWriter, r *http.Request) {
		var req credentials
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "bad request")
			return
		}
		id, token, err := hub.auth.Login(req.Username, req.Password, extractIP(r))
		switch {
		case errors.Is(err, ErrRateLimited):
			writeError(w, http.StatusTooManyRequests, err.Error())
			return
		case err != nil:
			writeError(w, http.StatusUnauthorized, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, authResponse{Token: token, AccountID: accountKey(id), Username: req.Username})
	})

	mux.HandleFunc("GET /api/me", func(w http.ResponseWriter, r *http.Request) {
		claims, err := hub.auth.Authenticate(r)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		if hub.db == nil {
			writeError(w, http.StatusServiceUnavailable, "accounts are disabled")
			return
		}
		stats, err := hub.db.GetStats(claims.Subject)
		if err != nil {
			hub.log.Error().Err(err).Msg("stats")
			writeError(w, http.StatusInternalServerError, "database error")
			return
		}
		history, err := hub.db.GetMatchHistory(claims.Subject, historyLimit)
		if err != nil {
			hub.log.Error().Err(err).Msg("history")
			writeError(w, http.StatusInternalServerError, "database error")
			return
		}
		writeJSON(w, http.StatusOK, profileResponse{Name: claims.Name, Stats: stats, Matches: history})
	})

	mux.HandleFunc("GET /api/qr", func(w http.ResponseWriter, r *http.Request) {
		id := r.URL.Query().Get("match")
		if id == "" {
			id = MainMatchID
		}
		if _, ok := hub.registry.Get(id); !ok {
			writeError(w, http.StatusNotFound, "match not found")
			return
		}
		png, err := qrcode.Encode(publicURL+"/?match="+url.QueryEscape(id), qrcode.Medium, qrSize)
		if err != nil {
			hub.log.Error().Err(err).Msg("qr encode")
			writeError(w, http.StatusInternalServerError, "qr error")
			return
		}
		w.Header().Set("Content-Type", "image/png")
		w.Write(png)
	})

	mux.HandleFunc("POST /match/start", func(w http.ResponseWriter, r *http.Request) {
		if err := hub.auth.AuthorizeAllocator(r); err != nil {
			if errors.Is(err, ErrNotAllocator) {
				writeError(w, http.StatusForbidden, "forbidden")
			} else {
				writeError(w, http.StatusUnauthorized, "unauthorized")
			}
			return
		}
		var req protocol.StartMatchRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "bad request")
			return
		}
		m, err := hub.registry.Start(req)
		switch {
		case errors.Is(err, ErrMatchExists):
			writeError(w, http.StatusConflict, err.Error())
			return
		case errors.Is(err, ErrTooManyMatches):
			writeError(w, http.StatusServiceUnavailable, err.Error())
			return
		case err != nil:
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusCreated, m.Info())
	})

	mux.HandleFunc("GET /api/matches", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, hub.registry.List())
	})

	mux.HandleFunc("GET /api/match/{id}/replay", func(w http.ResponseWriter, r *http.Request) {
		m, ok := hub.registry.Get(r.PathValue("id"))
		if !ok {
			writeError(w, http.StatusNotFound, "match not found")
			return
		}
		writeJSON(w, http.StatusOK, m.Replay())
	})

	return mux
}
