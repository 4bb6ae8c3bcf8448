package zrpc

import "github.com/zrpc-go/zrpc/serializer"

// ClientOption configures OpenClient.
type ClientOption func(*clientConfig)

type clientConfig struct {
	serializerFactory serializer.Factory
	instanceSeed      uint32
}

// WithSerializer selects the Packer/Unpacker backend a Client uses.
// Defaults to the msgpack backend if never set (see OpenClient).
func WithSerializer(f serializer.Factory) ClientOption {
	return func(c *clientConfig) { c.serializerFactory = f }
}

// WithInstanceSeed pins the pid_low16 half of the informational
// (pid_low16, rnd) prefix to seed's low 16 bits instead of deriving it
// from os.Getpid(). The rnd half is still drawn from math/rand at
// construction time. It has no effect on correctness.
func WithInstanceSeed(seed uint32) ClientOption {
	return func(c *clientConfig) { c.instanceSeed = seed }
}

// ServerOption configures StartServer.
type ServerOption func(*serverConfig)

type serverConfig struct {
	serializerFactory serializer.Factory
	instanceSeed      uint32
}

// WithServerSerializer selects the Packer/Unpacker backend a Server
// uses. Defaults to the msgpack backend if never set.
func WithServerSerializer(f serializer.Factory) ServerOption {
	return func(c *serverConfig) { c.serializerFactory = f }
}

// WithServerInstanceSeed pins the pid_low16 half of the server's
// informational instance prefix; see WithInstanceSeed.
func WithServerInstanceSeed(seed uint32) ServerOption {
	return func(c *serverConfig) { c.instanceSeed = seed }
}
