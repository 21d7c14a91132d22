package constant

// Conversation types
const (
	ConvTypeDirect = 1 // exactly two participants, roster immutable
	ConvTypeGroup  = 2
)

// Message types (open enum, only text is produced today)
const (
	MsgTypeText = 1
)

// Member roles
const (
	RoleMember = 0
	RoleOwner  = 1
)

// Platform Ids
const (
	PlatformIdUnknown = 0
	PlatformIdIOS     = 1
	PlatformIdAndroid = 2
	PlatformIdWeb     = 3
)

// PlatformIdToName converts platform Id to name
func PlatformIdToName(platformId int) string {
	switch platformId {
	case PlatformIdIOS:
		return "iOS"
	case PlatformIdAndroid:
		return "Android"
	case PlatformIdWeb:
		return "Web"
	default:
		return "Unknown"
	}
}

// Conversation Id prefixes
const (
	DirectConversationPrefix = "d_"
	GroupConversationPrefix  = "g_"
)

// History page size bounds
const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Redis key patterns (without prefix, use the RedisKey getters for full keys)
const (
	redisKeyToken      = "token:%s:%d" // token:{uid}:{platform_id}
	redisKeyOnline     = "online:%s"   // online:{uid}
	redisChanConvEvent = "conv:events" // pub/sub channel for conversation changes
)

// redisKeyPrefix is the global prefix for all Redis keys
var redisKeyPrefix = "chatsync:"

// InitRedisKeyPrefix initializes the Redis key prefix from config
func InitRedisKeyPrefix(prefix string) {
	if prefix != "" {
		redisKeyPrefix = prefix
	}
}

// Redis key getters with prefix
func RedisKeyToken() string       { return redisKeyPrefix + redisKeyToken }
func RedisKeyOnline() string      { return redisKeyPrefix + redisKeyOnline }
func RedisChanConvEvents() string { return redisKeyPrefix + redisChanConvEvent }
