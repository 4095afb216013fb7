package rules

import "testing"

func TestCheckRmCatastrophic(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		wantErr bool
	}{
		{"rf root", []string{"-rf", "/"}, true},
		{"r root", []string{"-r", "/"}, true},
		{"R root", []string{"-R", "/"}, true},
		{"rf dot", []string{"-rf", "."}, true},
		{"rf dotdot", []string{"-rf", ".."}, true},
		{"rf tilde", []string{"-rf", "~"}, true},
		{"rf tilde slash", []string{"-rf", "~/"}, true},
		{"rf root trailing slash", []string{"-rf", "//"}, true},
		{"r safe path", []string{"-rf", "/tmp/safe"}, false},
		{"no recursive flag", []string{"file.txt"}, false},
		{"f only root", []string{"-f", "/"}, false},
		{"recursive with safe path", []string{"-r", "build/"}, false},
		{"combined fr root", []string{"-fr", "/"}, true},
		{"multiple args mixed", []string{"-rf", "build/", "/"}, true},
		{"r flag separate", []string{"-r", "-f", "/"}, true},
		{"long recursive", []string{"--recursive", "."}, true},
		{"tilde subdir", []string{"-rf", "~/build"}, false},

		// Other programs are ignored.
		{"not rm", []string{"-rf", "/"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			name := "rm"
			if tt.name == "not rm" {
				name = "grep"
			}
			err := checkRmCatastrophic(name, tt.args)
			if (err != nil) != tt.wantErr {
				t.Errorf("checkRmCatastrophic(%q, %v) error = %v, wantErr %v",
					name, tt.args, err, tt.wantErr)
			}
		})
	}
}
