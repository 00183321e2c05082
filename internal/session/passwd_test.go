package session

import "testing"

func TestLoginShellLookup(t *testing.T) {
	const passwd = `root:x:0:0:root:/root:/bin/bash
# nobody should match the comment below
daemon:x:1:1:daemon:/usr/sbin:/usr/sbin/nologin

alice:x:1000:1000:Alice:/home/alice:/usr/bin/fish
`
	shell, err := loginShellIn(passwd, "1000")
	if err != nil {
		t.Fatalf("loginShellIn: %v", err)
	}
	if shell != "/usr/bin/fish" {
		t.Fatalf("shell = %q, want /usr/bin/fish", shell)
	}

	if _, err := loginShellIn(passwd, "4242"); err == nil {
		t.Fatalf("expected error for unknown uid")
	}

	if _, err := loginShellIn("mangled entry without colons\n", "0"); err == nil {
		t.Fatalf("expected error for malformed database")
	}
}
