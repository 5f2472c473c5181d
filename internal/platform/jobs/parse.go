package jobs

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/google/go-containerregistry/pkg/name"

	"github.com/neuro-inc/apolo-cli/internal/platform/uri"
)

// ParseError reports a malformed command-line value.
type ParseError struct {
	Kind   string
	Value  string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("invalid %s %q: %s", e.Kind, e.Value, e.Reason)
}

// splitMount splits "src:/dst[:ro|:rw]" where src may itself contain colons.
func splitMount(kind, s string) (src, dst string, readOnly bool, err error) {
	rest := s
	switch {
	case strings.HasSuffix(rest, ":ro"):
		readOnly, rest = true, strings.TrimSuffix(rest, ":ro")
	case strings.HasSuffix(rest, ":rw"):
		rest = strings.TrimSuffix(rest, ":rw")
	}
	i := strings.LastIndex(rest, ":")
	if i <= 0 || i == len(rest)-1 {
		return "", "", false, &ParseError{Kind: kind, Value: s, Reason: "expected SRC:DST[:ro|:rw]"}
	}
	src, dst = rest[:i], rest[i+1:]
	if !strings.HasPrefix(dst, "/") {
		return "", "", false, &ParseError{Kind: kind, Value: s, Reason: "mount path must be absolute"}
	}
	return src, dst, readOnly, nil
}

// ParseVolume parses "storage:path:/mnt[:ro]".
func ParseVolume(s string, ctx uri.Context) (Volume, error) {
	src, dst, ro, err := splitMount("volume", s)
	if err != nil {
		return Volume{}, err
	}
	u, err := uri.Parse(src, ctx, "", uri.Storage)
	if err != nil {
		return Volume{}, &ParseError{Kind: "volume", Value: s, Reason: err.Error()}
	}
	return Volume{StorageURI: uri.String(u), MountPath: dst, ReadOnly: ro}, nil
}

// ParseDiskVolume parses "disk:name-or-id:/mnt[:ro]".
func ParseDiskVolume(s string, ctx uri.Context) (DiskVolume, error) {
	src, dst, ro, err := splitMount("disk volume", s)
	if err != nil {
		return DiskVolume{}, err
	}
	u, err := uri.Parse(src, ctx, "", uri.Disk)
	if err != nil {
		return DiskVolume{}, &ParseError{Kind: "disk volume", Value: s, Reason: err.Error()}
	}
	return DiskVolume{DiskURI: uri.String(u), MountPath: dst, ReadOnly: ro}, nil
}

// ParseSecretFile parses "secret:key:/path".
func ParseSecretFile(s string, ctx uri.Context) (SecretFile, error) {
	src, dst, ro, err := splitMount("secret file", s)
	if err != nil {
		return SecretFile{}, err
	}
	if ro {
		return SecretFile{}, &ParseError{Kind: "secret file", Value: s, Reason: "secret files are always read-only"}
	}
	u, err := uri.Parse(src, ctx, "", uri.Secret)
	if err != nil {
		return SecretFile{}, &ParseError{Kind: "secret file", Value: s, Reason: err.Error()}
	}
	return SecretFile{SecretURI: uri.String(u), MountPath: dst}, nil
}

// Mounts collects the parsed -v/--volume values by kind.
type Mounts struct {
	Volumes     []Volume
	DiskVolumes []DiskVolume
	SecretFiles []SecretFile
}

// ParseMounts dispatches each value on its scheme.
func ParseMounts(values []string, ctx uri.Context) (Mounts, error) {
	var m Mounts
	for _, v := range values {
		switch {
		case strings.HasPrefix(v, uri.Secret+":"):
			sf, err := ParseSecretFile(v, ctx)
			if err != nil {
				return Mounts{}, err
			}
			m.SecretFiles = append(m.SecretFiles, sf)
		case strings.HasPrefix(v, uri.Disk+":"):
			dv, err := ParseDiskVolume(v, ctx)
			if err != nil {
				return Mounts{}, err
			}
			m.DiskVolumes = append(m.DiskVolumes, dv)
		default:
			vol, err := ParseVolume(v, ctx)
			if err != nil {
				return Mounts{}, err
			}
			m.Volumes = append(m.Volumes, vol)
		}
	}
	return m, nil
}

// ParseEnv splits "NAME=VALUE". A value with the secret: scheme is returned
// as a normalized secret URI with isSecret set. "NAME" alone is an error.
func ParseEnv(s string, ctx uri.Context) (key, value string, isSecret bool, err error) {
	key, value, ok := strings.Cut(s, "=")
	if !ok || key == "" {
		return "", "", false, &ParseError{Kind: "env", Value: s, Reason: "expected NAME=VALUE"}
	}
	if strings.HasPrefix(value, uri.Secret+":") {
		u, err := uri.Parse(value, ctx, "", uri.Secret)
		if err != nil {
			return "", "", false, &ParseError{Kind: "env", Value: s, Reason: err.Error()}
		}
		return key, uri.String(u), true, nil
	}
	return key, value, false, nil
}

// ParseEnvFile reads NAME=VALUE lines, skipping blanks and # comments.
func ParseEnvFile(r io.Reader) ([]string, error) {
	var out []string
	sc := bufio.NewScanner(r)
	for n := 1; sc.Scan(); n++ {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if !strings.Contains(line, "=") {
			return nil, &ParseError{Kind: "env file line " + strconv.Itoa(n), Value: line, Reason: "expected NAME=VALUE"}
		}
		out = append(out, line)
	}
	return out, sc.Err()
}

// ParseEnvs splits values into plain and secret environments. Later values
// override earlier ones.
func ParseEnvs(values []string, ctx uri.Context) (env, secretEnv map[string]string, err error) {
	env, secretEnv = map[string]string{}, map[string]string{}
	for _, v := range values {
		k, val, secret, err := ParseEnv(v, ctx)
		if err != nil {
			return nil, nil, err
		}
		delete(env, k)
		delete(secretEnv, k)
		if secret {
			secretEnv[k] = val
		} else {
			env[k] = val
		}
	}
	return env, secretEnv, nil
}

// ParseImage resolves an image argument to a pullable reference. Platform
// images ("image:name:tag") are rewritten to the cluster registry host;
// anything else must be a valid docker reference and is passed through.
func ParseImage(s string, ctx uri.Context, registryHost string) (string, error) {
	if !strings.HasPrefix(s, uri.Image+":") {
		if _, err := name.ParseReference(s); err != nil {
			return "", &ParseError{Kind: "image", Value: s, Reason: err.Error()}
		}
		return s, nil
	}
	if registryHost == "" {
		return "", &ParseError{Kind: "image", Value: s, Reason: "cluster has no registry"}
	}
	u, err := uri.Parse(s, ctx, "", uri.Image)
	if err != nil {
		return "", &ParseError{Kind: "image", Value: s, Reason: err.Error()}
	}
	repo := uri.ServicePath(u)
	if !strings.Contains(repo[strings.LastIndex(repo, "/")+1:], ":") && !strings.Contains(repo, "@") {
		repo += ":" + name.DefaultTag
	}
	ref, err := name.ParseReference(registryHost + "/" + repo)
	if err != nil {
		return "", &ParseError{Kind: "image", Value: s, Reason: err.Error()}
	}
	return ref.String(), nil
}

// ParseHTTPPort parses "--http-port 8080".
func ParseHTTPPort(s string, requiresAuth bool) (*HTTPPort, error) {
	if s == "" {
		return nil, nil
	}
	port, err := strconv.Atoi(s)
	if err != nil || port <= 0 || port > 65535 {
		return nil, &ParseError{Kind: "http port", Value: s, Reason: "expected 1-65535"}
	}
	return &HTTPPort{Port: port, RequiresAuth: requiresAuth}, nil
}
