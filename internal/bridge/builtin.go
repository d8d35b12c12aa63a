package bridge

import (
	"context"
	"errors"
	"strings"

	"github.com/yndnr/chaingate/internal/core/domain"
	"github.com/yndnr/chaingate/internal/infra/buildinfo"
	"github.com/yndnr/chaingate/internal/storage"
)

// stateKeyPrefix namespaces command-visible keys inside the store.
const stateKeyPrefix = "state/"

// maxKeysListed bounds the keys command.
const maxKeysListed = 1000

func builtinCommands() []Command {
	return []Command{
		{Name: "help", Usage: "help [command]", MaxArgs: 1, Run: cmdHelp},
		{Name: "version", Usage: "version", MaxArgs: 0, Run: cmdVersion},
		{Name: "ping", Usage: "ping", MaxArgs: 0, Run: cmdPing},
		{Name: "echo", Usage: "echo [words...]", MaxArgs: -1, Run: cmdEcho},
		{Name: "get", Usage: "get <key>", MinArgs: 1, MaxArgs: 1, Run: cmdGet},
		{Name: "set", Usage: "set <key> <value...>", MinArgs: 2, MaxArgs: -1, Run: cmdSet},
		{Name: "del", Usage: "del <key...>", MinArgs: 1, MaxArgs: -1, Run: cmdDel},
		{Name: "keys", Usage: "keys [prefix]", MaxArgs: 1, Run: cmdKeys},
	}
}

func cmdHelp(_ context.Context, call *Call) (any, error) {
	if len(call.Params) == 1 {
		c, ok := call.Registry.Lookup(call.Params[0])
		if !ok {
			return nil, domain.ErrUnknownCommand.WithDetails(call.Params[0])
		}
		return c.Usage, nil
	}
	usage := make(map[string]string)
	for _, c := range call.Registry.Commands() {
		usage[c.Name] = c.Usage
	}
	return usage, nil
}

func cmdVersion(context.Context, *Call) (any, error) {
	return buildinfo.Get(), nil
}

func cmdPing(context.Context, *Call) (any, error) {
	return "pong", nil
}

func cmdEcho(_ context.Context, call *Call) (any, error) {
	return strings.Join(call.Params, " "), nil
}

func cmdGet(ctx context.Context, call *Call) (any, error) {
	if call.State == nil {
		return nil, domain.ErrStorageError.WithDetails("no state store")
	}
	v, err := call.State.Get(ctx, stateKey(call.Params[0]))
	if errors.Is(err, storage.ErrKeyNotFound) {
		return nil, domain.ErrCommandFailed.WithDetails("key not found: " + call.Params[0])
	}
	if err != nil {
		return nil, domain.ErrStorageError.WithCause(err)
	}
	return string(v), nil
}

func cmdSet(ctx context.Context, call *Call) (any, error) {
	if call.State == nil {
		return nil, domain.ErrStorageError.WithDetails("no state store")
	}
	value := strings.Join(call.Params[1:], " ")
	if err := call.State.Set(ctx, stateKey(call.Params[0]), []byte(value)); err != nil {
		return nil, domain.ErrStorageError.WithCause(err)
	}
	return "OK", nil
}

func cmdDel(ctx context.Context, call *Call) (any, error) {
	if call.State == nil {
		return nil, domain.ErrStorageError.WithDetails("no state store")
	}
	deleted := 0
	for _, k := range call.Params {
		key := stateKey(k)
		if _, err := call.State.Get(ctx, key); err != nil {
			if errors.Is(err, storage.ErrKeyNotFound) {
				continue
			}
			return nil, domain.ErrStorageError.WithCause(err)
		}
		if err := call.State.Delete(ctx, key); err != nil {
			return nil, domain.ErrStorageError.WithCause(err)
		}
		deleted++
	}
	return deleted, nil
}

func cmdKeys(ctx context.Context, call *Call) (any, error) {
	if call.State == nil {
		return nil, domain.ErrStorageError.WithDetails("no state store")
	}
	prefix := ""
	if len(call.Params) == 1 {
		prefix = call.Params[0]
	}
	keys := []string{}
	err := call.State.Scan(ctx, stateKey(prefix), func(key, _ []byte) bool {
		keys = append(keys, strings.TrimPrefix(string(key), stateKeyPrefix))
		return len(keys) < maxKeysListed
	})
	if err != nil {
		return nil, domain.ErrStorageError.WithCause(err)
	}
	return keys, nil
}

func stateKey(k string) []byte {
	return []byte(stateKeyPrefix + k)
}
