// utils/safelog.go
// ============================================================================
// SAFE LOGGING - Masque les données sensibles en production
// ============================================================================
// Les montants, emails et identifiants des dossiers PJC ne doivent pas
// apparaître en clair dans les logs de production. Toutes les fonctions
// passent par un logger zap unique.
// ============================================================================

package utils

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ============================================================================
// CONFIGURATION
// ============================================================================

var (
	// IsProduction détermine si on est en mode production
	IsProduction = os.Getenv("GIN_MODE") == "release" ||
		os.Getenv("ENVIRONMENT") == "production" ||
		os.Getenv("ENV") == "production"

	// LogLevel est lu depuis LOG_LEVEL (DEBUG, INFO, WARN, ERROR)
	LogLevel = parseLogLevel(os.Getenv("LOG_LEVEL"))

	loggerMu sync.RWMutex
	logger   = newLogger(LogLevel)
)

func parseLogLevel(level string) zapcore.Level {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return zapcore.DebugLevel
	case "WARN", "WARNING":
		return zapcore.WarnLevel
	case "ERROR":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

func newLogger(level zapcore.Level) *zap.SugaredLogger {
	cfg := zap.NewDevelopmentConfig()
	if IsProduction {
		cfg = zap.NewProductionConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(level)
	cfg.DisableStacktrace = true

	l, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		return zap.NewNop().Sugar()
	}
	return l.Sugar()
}

// SetLogger remplace le logger global (tests)
func SetLogger(l *zap.Logger) {
	loggerMu.Lock()
	defer loggerMu.Unlock()
	logger = l.WithOptions(zap.AddCallerSkip(1)).Sugar()
}

// Logger retourne le logger sous-jacent
func Logger() *zap.Logger {
	loggerMu.RLock()
	defer loggerMu.RUnlock()
	return logger.Desugar()
}

func current() *zap.SugaredLogger {
	loggerMu.RLock()
	defer loggerMu.RUnlock()
	return logger
}

// Sync flushes buffered entries; call it before exit.
func Sync() {
	_ = current().Sync()
}

// ============================================================================
// PATTERNS DE MASQUAGE
// ============================================================================

var (
	emailRegex = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)

	// Montants avec devise, y compris le format français "12 345,67 €"
	amountWithCurrencyRegex = regexp.MustCompile(`\d[\d\s.]*([.,]\d{1,2})?\s*(€|EUR)`)

	uuidRegex = regexp.MustCompile(`[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}`)
)

// ============================================================================
// FONCTIONS DE MASQUAGE
// ============================================================================

// MaskString masque les données sensibles dans une chaîne
func MaskString(input string) string {
	if !IsProduction {
		return input
	}

	result := emailRegex.ReplaceAllString(input, "***@***.***")
	result = amountWithCurrencyRegex.ReplaceAllString(result, "***€")
	result = uuidRegex.ReplaceAllStringFunc(result, shortenID)

	return result
}

func shortenID(id string) string {
	if len(id) > 8 {
		return id[:8] + "..."
	}
	return "***"
}

// MaskAmount masque un montant financier
func MaskAmount(amount float64) string {
	if IsProduction {
		return "***"
	}
	return fmt.Sprintf("%.2f", amount)
}

// MaskID masque partiellement un ID (garde les 8 premiers caractères)
func MaskID(id string) string {
	if !IsProduction {
		return id
	}
	return shortenID(id)
}

// ============================================================================
// FONCTIONS DE LOGGING SÉCURISÉES
// ============================================================================

func SafeDebug(format string, args ...interface{}) {
	current().Debug(MaskString(fmt.Sprintf(format, args...)))
}

func SafeInfo(format string, args ...interface{}) {
	current().Info(MaskString(fmt.Sprintf(format, args...)))
}

func SafeWarn(format string, args ...interface{}) {
	current().Warn(MaskString(fmt.Sprintf(format, args...)))
}

func SafeError(format string, args ...interface{}) {
	current().Error(MaskString(fmt.Sprintf(format, args...)))
}

// ============================================================================
// FONCTIONS DE LOGGING MÉTIER SPÉCIFIQUES
// ============================================================================

// LogStatsFetch trace un appel au backend de statistiques
func LogStatsFetch(endpoint string, year int, err error) {
	if err != nil {
		current().Warnw("[Stats] fetch failed",
			"endpoint", endpoint,
			"year", year,
			"error", MaskString(err.Error()))
		return
	}
	current().Debugw("[Stats] fetch ok", "endpoint", endpoint, "year", year)
}

// LogExportAction log une action d'export sans exposer l'utilisateur
func LogExportAction(action string, jobID string, userID string, format string) {
	current().Infow("[Export] "+action,
		"job", MaskID(jobID),
		"user", MaskID(userID),
		"format", format)
}

// LogAPIRequest log une requête API (sans données sensibles dans le body)
func LogAPIRequest(method string, path string, userID string, statusCode int, duration string) {
	if IsProduction {
		path = uuidRegex.ReplaceAllStringFunc(path, shortenID)
	}
	current().Infow("[API] "+method+" "+path,
		"user", MaskID(userID),
		"status", statusCode,
		"duration", duration)
}

// LogWebSocket log une action WebSocket
func LogWebSocket(action string, userID string) {
	current().Infow("[WS] "+action, "user", MaskID(userID))
}

// ============================================================================
// FONCTIONS UTILITAIRES
// ============================================================================

// GetEnvMode retourne le mode d'environnement actuel
func GetEnvMode() string {
	if IsProduction {
		return "production"
	}
	return "development"
}

// LogStartup log les informations de démarrage de l'application
func LogStartup(appName string, version string, port string) {
	l := current()
	l.Infof("🚀 %s v%s starting...", appName, version)
	l.Infof("   Mode: %s", GetEnvMode())
	l.Infof("   Port: %s", port)
	l.Infof("   Log Level: %s", LogLevel)
	if IsProduction {
		l.Info("   ⚠️  Production mode: Sensitive data will be masked in logs")
	}
}
