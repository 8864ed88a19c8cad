package app

import (
	"log/slog"
	"net/http"

	"quietwire/internal/config"
)

// Config holds runtime wiring options for building the app.
type Config struct {
	HomeDir    string        // config directory, e.g. $HOME/.quietwire
	RelayURL   string        // relay base URL, e.g. http://127.0.0.1:8080
	Passphrase string        // unlocks the file vault
	UseKeyring bool          // prefer the OS keychain over the file vault
	HTTPClient *http.Client  // optional; defaults to http.DefaultClient
	Logger     *slog.Logger  // optional; defaults to slog.Default()
	Core       config.Config // core protocol knobs
}
