//go:build windows

package registry

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/sys/windows/registry"
)

type windowsClient struct{}

func liveClient() Client { return windowsClient{} }

func (windowsClient) Supported() bool { return true }

// splitPath separates the hive name from the key path and converts to the
// backslash form the Windows API expects.
func splitPath(path string) (registry.Key, string, error) {
	path = strings.ReplaceAll(path, "\\", "/")
	hive, rest, _ := strings.Cut(path, "/")
	switch strings.ToUpper(hive) {
	case "HKEY_CURRENT_USER", "HKCU":
		return registry.CURRENT_USER, strings.ReplaceAll(rest, "/", `\`), nil
	case "HKEY_LOCAL_MACHINE", "HKLM":
		return registry.LOCAL_MACHINE, strings.ReplaceAll(rest, "/", `\`), nil
	case "HKEY_CLASSES_ROOT":
		return registry.CLASSES_ROOT, strings.ReplaceAll(rest, "/", `\`), nil
	case "HKEY_USERS":
		return registry.USERS, strings.ReplaceAll(rest, "/", `\`), nil
	case "HKEY_CURRENT_CONFIG":
		return registry.CURRENT_CONFIG, strings.ReplaceAll(rest, "/", `\`), nil
	default:
		return 0, "", fmt.Errorf("unknown registry hive: %q", hive)
	}
}

func (windowsClient) Enumerate(path string) ([]string, error) {
	hive, sub, err := splitPath(path)
	if err != nil {
		return nil, err
	}
	k, err := registry.OpenKey(hive, sub, registry.ENUMERATE_SUB_KEYS)
	if err == registry.ErrNotExist {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer k.Close()

	names, err := k.ReadSubKeyNames(0)
	if err != nil {
		return nil, fmt.Errorf("enumerate %s: %w", path, err)
	}
	children := make([]string, 0, len(names))
	for _, name := range names {
		children = append(children, path+"/"+name)
	}
	return children, nil
}

func (windowsClient) Export(path string) (Key, error) {
	hive, sub, err := splitPath(path)
	if err != nil {
		return nil, err
	}
	k, err := registry.OpenKey(hive, sub, registry.QUERY_VALUE)
	if err == registry.ErrNotExist {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer k.Close()

	names, err := k.ReadValueNames(0)
	if err != nil {
		return nil, fmt.Errorf("enumerate %s: %w", path, err)
	}

	out := Key{}
	for _, name := range names {
		_, valType, err := k.GetValue(name, nil)
		if err != nil {
			return nil, fmt.Errorf("read %s\\%s: %w", path, name, err)
		}
		v, err := exportValue(k, name, valType)
		if err != nil {
			return nil, fmt.Errorf("read %s\\%s: %w", path, name, err)
		}
		out[name] = v
	}
	return out, nil
}

func exportValue(k registry.Key, name string, valType uint32) (Value, error) {
	switch valType {
	case registry.SZ:
		s, _, err := k.GetStringValue(name)
		return Value{Kind: KindSz, Data: s}, err
	case registry.EXPAND_SZ:
		s, _, err := k.GetStringValue(name)
		return Value{Kind: KindExpandSz, Data: s}, err
	case registry.MULTI_SZ:
		ss, _, err := k.GetStringsValue(name)
		return Value{Kind: KindMultiSz, Data: strings.Join(ss, "\n")}, err
	case registry.DWORD:
		n, _, err := k.GetIntegerValue(name)
		return Value{Kind: KindDword, Data: strconv.FormatUint(n, 10)}, err
	case registry.QWORD:
		n, _, err := k.GetIntegerValue(name)
		return Value{Kind: KindQword, Data: strconv.FormatUint(n, 10)}, err
	default:
		b, _, err := k.GetBinaryValue(name)
		return Value{Kind: KindBinary, Data: hex.EncodeToString(b)}, err
	}
}

func (windowsClient) Import(path string, key Key) error {
	hive, sub, err := splitPath(path)
	if err != nil {
		return err
	}
	k, _, err := registry.CreateKey(hive, sub, registry.SET_VALUE)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer k.Close()

	for name, v := range key {
		if err := importValue(k, name, v); err != nil {
			return fmt.Errorf("write %s\\%s: %w", path, name, err)
		}
	}
	return nil
}

func importValue(k registry.Key, name string, v Value) error {
	switch v.Kind {
	case KindSz:
		return k.SetStringValue(name, v.Data)
	case KindExpandSz:
		return k.SetExpandStringValue(name, v.Data)
	case KindMultiSz:
		return k.SetStringsValue(name, strings.Split(v.Data, "\n"))
	case KindDword:
		n, err := strconv.ParseUint(v.Data, 10, 32)
		if err != nil {
			return err
		}
		return k.SetDWordValue(name, uint32(n))
	case KindQword:
		n, err := strconv.ParseUint(v.Data, 10, 64)
		if err != nil {
			return err
		}
		return k.SetQWordValue(name, n)
	default:
		b, err := hex.DecodeString(v.Data)
		if err != nil {
			return err
		}
		return k.SetBinaryValue(name, b)
	}
}
