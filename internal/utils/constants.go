package utils

import "time"

// Application Constants
const (
	AppName    = "RideGuard"
	AppVersion = "1.0.0"

	// Default values
	DefaultLanguage    = "en"
	DefaultCountryCode = "+1"
	DefaultTimeZone    = "UTC"

	// Pagination
	DefaultPageSize = 20
	MaxPageSize     = 100
	MinPageSize     = 1

	// Authentication
	JWTAccessTokenTTL  = 24 * time.Hour
	JWTRefreshTokenTTL = 7 * 24 * time.Hour

	// Emergency
	MaxEmergencyContacts  = 5
	MaxMediaAttachments   = 10
	LocationTrailMaxAge   = 24 * time.Hour
	EmergencyCacheTTL     = 5 * time.Minute

	// File Upload
	MaxImageSize = 5 * 1024 * 1024   // 5MB
	MaxAudioSize = 50 * 1024 * 1024  // 50MB
	MaxVideoSize = 100 * 1024 * 1024 // 100MB

	// Rate Limiting
	DefaultRateLimit = 100

	// Notification
	NotificationRetryAttempts = 3
	NotificationTimeout       = 30 * time.Second
)

// HTTP Status Messages
const (
	StatusSuccess = "success"
	StatusError   = "error"
	StatusFailed  = "failed"
)

// Error Messages
const (
	ErrInvalidToken      = "invalid token"
	ErrTokenExpired      = "token expired"
	ErrInvalidInput      = "invalid input"
	ErrInternalServer    = "internal server error"
	ErrUnauthorized      = "unauthorized"
	ErrForbidden         = "forbidden"
	ErrNotFound          = "not found"
	ErrConflict          = "conflict"
	ErrValidationFailed  = "validation failed"
	ErrFileUploadFailed  = "file upload failed"
	ErrEmergencyNotFound = "emergency not found"
)

// Cache Keys
const (
	CacheEmergencyPrefix = "emergency:"
	CacheContactPrefix   = "contact:"
	CacheRateLimitPrefix = "rate_limit:"
)

// Event Types
const (
	EventEmergencyTriggered = "emergency_triggered"
	EventEmergencyEscalated = "emergency_escalated"
	EventEmergencyResolved  = "emergency_resolved"
	EventEmergencyFlagged   = "emergency_flagged"
	EventDispatchRequested  = "dispatch_requested"
)

// File Types
var (
	AllowedImageTypes = []string{"jpg", "jpeg", "png", "webp"}
	AllowedAudioTypes = []string{"mp3", "wav", "aac", "m4a"}
	AllowedVideoTypes = []string{"mp4", "mov"}
)
