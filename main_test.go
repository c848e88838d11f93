package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/viant/afs"

	core "superres.io/hpc-launcher/core"
	lsf "superres.io/hpc-launcher/lsf"
)

// execute runs one command line against fresh command state
func execute(t *testing.T, args ...string) (string, error) {
	var b bytes.Buffer
	stdout = &b
	exitStatus = 0
	runCommand = RunCommand{}
	flagsCommand = FlagsCommand{}
	scriptCommand = ScriptCommand{}
	submitCommand = SubmitCommand{}
	inspectCommand = InspectCommand{}
	profilesCommand = ProfilesCommand{}
	configCommand = ConfigCommand{}
	_, err := parser.ParseArgs(args)
	return b.String(), err
}

func withConfig(t *testing.T) string {
	path := filepath.Join(t.TempDir(), "config.yaml")
	t.Setenv(core.SuperresHpcConfigEnv, path)
	return path
}

func TestFlagsCommand(t *testing.T) {
	withConfig(t)
	inv := core.DefaultTrainProfile().Invocation

	out, err := execute(t, "flags")
	assert.NoError(t, err)
	assert.Equal(t, inv.FlagString()+"\n", out)

	out, err = execute(t, "flags", "--env")
	assert.NoError(t, err)
	assert.Equal(t, "CUDA_VISIBLE_DEVICES=0,1,2,3\n", out)

	out, err = execute(t, "flags", "--env", "-d", "0,1")
	assert.NoError(t, err)
	assert.Equal(t, "CUDA_VISIBLE_DEVICES=0,1\n", out)

	out, err = execute(t, "flags", "--group", "log")
	assert.NoError(t, err)
	assert.Equal(t, "--log_dir experiments/shtech_A\n", out)

	out, err = execute(t, "flags", "--command", "-p", core.PreprocessProfile)
	assert.NoError(t, err)
	assert.Equal(t, core.DefaultPreprocessProfile().Invocation.CommandLine()+"\n", out)

	out, err = execute(t, "flags", "--get", "lr")
	assert.NoError(t, err)
	assert.Equal(t, "1e-4\n", out)

	out, err = execute(t, "flags", "--get", "data_dir", "-p", core.PreprocessTestProfile)
	assert.NoError(t, err)
	assert.Equal(t, "primary_datasets/\n", out)

	_, err = execute(t, "flags", "--get", "lr", "--group", "model")
	assert.Error(t, err)

	_, err = execute(t, "flags", "--group", "optimizer")
	assert.Error(t, err)
	_, err = execute(t, "flags", "-p", "missing")
	assert.True(t, errors.Is(err, core.ErrProfileNotFound))
	_, err = execute(t, "flags", "-d", "0,x")
	assert.Error(t, err)
}

func TestScriptCommand(t *testing.T) {
	withConfig(t)
	out, err := execute(t, "script")
	assert.NoError(t, err)
	assert.Equal(t, strings.Join(lsf.Script(core.DefaultTrainProfile()), "\n")+"\n", out)

	out, err = execute(t, "script", "-s", "slurm")
	assert.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "#!/bin/bash\n#SBATCH --job-name=superres_train\n"))

	out, err = execute(t, "script", "-s", "sge")
	assert.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "#!/bin/bash\n#$ -S /bin/bash\n"))

	path := filepath.Join(t.TempDir(), "train.lsf")
	out, err = execute(t, "script", "-o", path)
	assert.NoError(t, err)
	assert.Empty(t, out)
	data, err := os.ReadFile(path)
	assert.NoError(t, err)
	assert.Equal(t, strings.Join(lsf.Script(core.DefaultTrainProfile()), "\n")+"\n", string(data))
}

const childScript = `#!/bin/sh
echo "devices=$CUDA_VISIBLE_DEVICES args=$*"
exit 3
`

func TestRunCommand(t *testing.T) {
	path := withConfig(t)
	child := filepath.Join(t.TempDir(), "child.sh")
	assert.NoError(t, os.WriteFile(child, []byte(childScript), 0755))
	profile := core.Profile{
		Invocation: core.Invocation{
			Interpreter: "/bin/sh",
			Script:      child,
			Devices:     []int{0, 1, 2, 3},
			Groups: []core.FlagGroup{
				{Name: core.LogGroup, Flags: []core.Flag{{Name: "log_dir", Value: "experiments/shtech_A"}}},
			},
		},
	}
	config := core.Config{Default: "child", Profiles: map[string]core.Profile{"child": profile}}
	assert.NoError(t, core.WriteConfig(context.Background(), afs.New(), path, config))

	out, err := execute(t, "run")
	assert.NoError(t, err)
	assert.Equal(t, 3, exitStatus)
	assert.Equal(t, "devices=0,1,2,3 args=--log_dir experiments/shtech_A\n", out)

	out, err = execute(t, "run", "-d", "2")
	assert.NoError(t, err)
	assert.Equal(t, 3, exitStatus)
	assert.Equal(t, "devices=2 args=--log_dir experiments/shtech_A\n", out)
}

func TestRunCommandTerminated(t *testing.T) {
	path := withConfig(t)
	child := filepath.Join(t.TempDir(), "child.sh")
	assert.NoError(t, os.WriteFile(child, []byte("#!/bin/sh\necho started\nexec sleep 5\n"), 0755))
	profile := core.Profile{Invocation: core.Invocation{Interpreter: "/bin/sh", Script: child}}
	config := core.Config{Default: "child", Profiles: map[string]core.Profile{"child": profile}}
	assert.NoError(t, core.WriteConfig(context.Background(), afs.New(), path, config))

	go func() {
		time.Sleep(time.Second)
		_ = syscall.Kill(os.Getpid(), syscall.SIGTERM)
	}()
	out, err := execute(t, "run")
	assert.NoError(t, err)
	assert.Equal(t, 143, exitStatus)
	assert.Equal(t, "started\n", out)
}

func TestRunCommandNotStarted(t *testing.T) {
	path := withConfig(t)
	profile := core.Profile{
		Invocation: core.Invocation{Interpreter: filepath.Join(t.TempDir(), "missing-python")},
	}
	config := core.Config{Default: "broken", Profiles: map[string]core.Profile{"broken": profile}}
	assert.NoError(t, core.WriteConfig(context.Background(), afs.New(), path, config))

	_, err := execute(t, "run")
	assert.Error(t, err)
	assert.Equal(t, 127, exitStatus)
}

func TestRunCommandDryRun(t *testing.T) {
	withConfig(t)
	profile := core.DefaultTrainProfile()
	out, err := execute(t, "run", "--dry-run")
	assert.NoError(t, err)
	assert.Equal(t, 0, exitStatus)
	lines := append(profile.Environment.Commands(), profile.Invocation.CommandLine())
	assert.Equal(t, strings.Join(lines, "\n")+"\n", out)
}

func TestProfilesCommand(t *testing.T) {
	withConfig(t)
	out, err := execute(t, "profiles")
	assert.NoError(t, err)
	assert.Equal(t, "preprocess\npreprocess_test\ntrain (default)\n", out)

	out, err = execute(t, "profiles", "-v", "train")
	assert.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "train:\n  resources:\n    job_name: superres_train\n"))

	_, err = execute(t, "profiles", "missing")
	assert.True(t, errors.Is(err, core.ErrProfileNotFound))
}

func TestConfigCommand(t *testing.T) {
	path := withConfig(t)
	out, err := execute(t, "config", "path")
	assert.NoError(t, err)
	assert.Equal(t, path+"\n", out)

	_, err = execute(t, "config", "init")
	assert.NoError(t, err)
	_, err = os.Stat(path)
	assert.NoError(t, err)

	_, err = execute(t, "config", "init")
	assert.Error(t, err)
	_, err = execute(t, "config", "init", "--force")
	assert.NoError(t, err)

	_, err = execute(t, "config", "default", core.PreprocessProfile)
	assert.NoError(t, err)
	out, err = execute(t, "profiles")
	assert.NoError(t, err)
	assert.Equal(t, "preprocess (default)\npreprocess_test\ntrain\n", out)

	_, err = execute(t, "config", "default", "missing")
	assert.True(t, errors.Is(err, core.ErrProfileNotFound))
}

func TestInspectCommand(t *testing.T) {
	withConfig(t)
	dir := t.TempDir()
	for _, scheduler := range []string{"lsf", "slurm", "sge"} {
		path := filepath.Join(dir, "train."+scheduler)
		_, err := execute(t, "script", "-s", scheduler, "-o", path)
		assert.NoError(t, err, scheduler)

		out, err := execute(t, "inspect", "--check", path)
		assert.NoError(t, err, scheduler)
		assert.True(t, strings.HasPrefix(out, "scheduler: "+scheduler+"\n"), scheduler)
		assert.Contains(t, out, "memory_mb: 8192\n", scheduler)
		assert.Contains(t, out, "profile: train\n", scheduler)
	}

	path := filepath.Join(dir, "edited.lsf")
	script := strings.Replace(strings.Join(lsf.Script(core.DefaultTrainProfile()), "\n"), "-q gpuv100", "-q gpua100", 1)
	assert.NoError(t, os.WriteFile(path, []byte(script+"\n"), 0644))
	out, err := execute(t, "inspect", path)
	assert.NoError(t, err)
	assert.NotContains(t, out, "differences")
	out, err = execute(t, "inspect", "--check", path)
	assert.Error(t, err)
	assert.Contains(t, out, "differences:\n")
	assert.Contains(t, out, "gpua100")

	plain := filepath.Join(dir, "plain.sh")
	assert.NoError(t, os.WriteFile(plain, []byte("#!/bin/sh\necho hi\n"), 0644))
	_, err = execute(t, "inspect", plain)
	assert.Error(t, err)
}

func TestSubmitCommand(t *testing.T) {
	withConfig(t)
	dir := t.TempDir()
	binary := filepath.Join(dir, "bsub")
	fake := "#!/bin/sh\ncat > /dev/null\necho 'Job <4242> is submitted to queue <gpuv100>.'\n"
	assert.NoError(t, os.WriteFile(binary, []byte(fake), 0755))

	saved := filepath.Join(dir, "submitted.lsf")
	out, err := execute(t, "submit", "-b", binary, "--save", saved)
	assert.NoError(t, err)
	assert.Equal(t, "Job 4242 submitted to queue gpuv100\n", out)
	data, err := os.ReadFile(saved)
	assert.NoError(t, err)
	assert.Equal(t, strings.Join(lsf.Script(core.DefaultTrainProfile()), "\n")+"\n", string(data))

	_, err = execute(t, "submit", "-b", filepath.Join(dir, "missing-bsub"))
	assert.Error(t, err)
}

func TestHelp(t *testing.T) {
	_, err := execute(t, "run", "-h")
	assert.Equal(t, core.CreateHelpErr(), err)
}

func TestParseDevices(t *testing.T) {
	devices, err := parseDevices("0, 1,3")
	assert.NoError(t, err)
	assert.Equal(t, []int{0, 1, 3}, devices)
	_, err = parseDevices("-1")
	assert.Error(t, err)
	_, err = parseDevices("")
	assert.Error(t, err)
}
