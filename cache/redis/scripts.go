package redis

import goredis "github.com/redis/go-redis/v9"

// delIfValue releases a lease only while the caller still owns it.
var delIfValue = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)
