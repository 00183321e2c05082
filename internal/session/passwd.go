package session

import (
	"fmt"
	"os"
	"strings"
)

const passwdPath = "/etc/passwd"

// loginShell looks up the uid's shell in the passwd database.
func loginShell(uid string) (string, error) {
	data, err := os.ReadFile(passwdPath)
	if err != nil {
		return "", err
	}
	return loginShellIn(string(data), uid)
}

func loginShellIn(passwd, uid string) (string, error) {
	for _, entry := range strings.Split(passwd, "\n") {
		if entry == "" || strings.HasPrefix(entry, "#") {
			continue
		}
		// name:password:uid:gid:gecos:home:shell
		fields := strings.Split(entry, ":")
		if len(fields) != 7 || fields[2] != uid {
			continue
		}
		return fields[6], nil
	}
	return "", fmt.Errorf("uid %s has no passwd entry", uid)
}
