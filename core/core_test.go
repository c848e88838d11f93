package core

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/viant/afs"
)

const trainFlagString = "--data_dir datasets/intermediate/shtech_A/part_1/train" +
	" --val_samples_dir datasets/intermediate/shtech_A/part_1/test" +
	" --log_dir experiments/shtech_A" +
	" --normalizer 0.8 --pred_channels 1 --batch_size 8 --save_interval 10000 --lr 1e-4" +
	" --attention_resolutions 32,16,8 --class_cond False --diffusion_steps 1000" +
	" --large_size 256 --small_size 256 --learn_sigma True --noise_schedule linear" +
	" --num_channels 192 --num_head_channels 64 --num_res_blocks 2 --resblock_updown True" +
	" --use_fp16 True --use_scale_shift_norm True"

func TestTrainFlagString(t *testing.T) {
	inv := DefaultTrainProfile().Invocation
	assert.Equal(t, trainFlagString, inv.FlagString())

	var groups []string
	for _, name := range []string{DataGroup, LogGroup, TrainGroup, ModelGroup} {
		g, ok := inv.Group(name)
		assert.True(t, ok, name)
		groups = append(groups, g.String())
	}
	assert.Equal(t, strings.Join(groups, " "), inv.FlagString())
	assert.Equal(t, strings.Fields(trainFlagString), inv.Args())
}

func TestArgv(t *testing.T) {
	argv := DefaultTrainProfile().Invocation.Argv()
	assert.Equal(t, []string{"python", "scripts/super_res_train.py", "--data_dir"}, argv[:3])
	assert.Equal(t, "True", argv[len(argv)-1])
}

func TestDeviceEnviron(t *testing.T) {
	inv := DefaultTrainProfile().Invocation
	assert.Equal(t, []string{"CUDA_VISIBLE_DEVICES=0,1,2,3"}, inv.Environ())

	inv.Env = map[string]string{"OMP_NUM_THREADS": "2", "A": "b"}
	assert.Equal(t, []string{"CUDA_VISIBLE_DEVICES=0,1,2,3", "A=b", "OMP_NUM_THREADS=2"}, inv.Environ())

	inv.Devices = nil
	assert.Equal(t, []string{"A=b", "OMP_NUM_THREADS=2"}, inv.Environ())
}

func TestSwitchFlag(t *testing.T) {
	g, ok := DefaultPreprocessProfile().Invocation.Group(DensityGroup)
	assert.True(t, ok)
	assert.Equal(t, "--kernel_size 1 3 5 --sigma 0.5 1 2 --image_size 256 --ndevices 4 --with_density", g.String())
	assert.Equal(t, []string{"--kernel_size", "1 3 5", "--sigma", "0.5 1 2", "--image_size", "256", "--ndevices", "4", "--with_density"}, g.Args())
}

func TestPreprocessProfiles(t *testing.T) {
	for _, profile := range []Profile{DefaultPreprocessProfile(), DefaultPreprocessTestProfile()} {
		assert.Zero(t, profile.Resources.Gpus, profile.Name)
		assert.Empty(t, profile.Resources.GpuMode, profile.Name)
		assert.Empty(t, profile.Invocation.Environ(), profile.Name)
	}
	train, _ := DefaultPreprocessProfile().Invocation.Group(DatasetGroup)
	mode, _ := train.Lookup("mode")
	assert.Equal(t, "train", mode)

	test, _ := DefaultPreprocessTestProfile().Invocation.Group(DatasetGroup)
	mode, _ = test.Lookup("mode")
	assert.Equal(t, "test", mode)
	outputDir, _ := test.Lookup("output_dir")
	assert.Equal(t, "superres_preprocess_test", DefaultPreprocessTestProfile().Resources.JobName)

	// part_1/test is where the train profile reads validation samples
	data, _ := DefaultTrainProfile().Invocation.Group(DataGroup)
	valSamples, _ := data.Lookup("val_samples_dir")
	assert.Equal(t, outputDir+"/"+DefaultDataset+"/part_1/test", valSamples)
}

func TestShellQuote(t *testing.T) {
	var testCases = []struct {
		in   string
		want string
	}{
		{"", "''"},
		{"1e-4", "1e-4"},
		{"32,16,8", "32,16,8"},
		{"1 3 5", "'1 3 5'"},
		{"it's", `it\'s`},
		{"$HOME", `\$HOME`},
		{"span[hosts=1]", `span\[hosts=1]`},
		{"it's here", `'it'\''s here'`},
	}
	for _, tc := range testCases {
		assert.Equal(t, tc.want, ShellQuote(tc.in), tc.in)
	}
}

func TestCommandLine(t *testing.T) {
	inv := DefaultPreprocessProfile().Invocation
	assert.Equal(t, "python cc_utils/preprocess_shtech.py"+
		" --dataset shtech_A --data_dir primary_datasets/ --mode train --output_dir datasets/intermediate"+
		" --kernel_size '1 3 5' --sigma '0.5 1 2' --image_size 256 --ndevices 4 --with_density",
		inv.CommandLine())
}

func TestScriptBody(t *testing.T) {
	body := ScriptBody(DefaultTrainProfile())
	assert.Equal(t, "module load cuda/11.8", body[0])
	assert.Equal(t, "source venv/crowddiff/bin/activate", body[1])
	assert.Equal(t, "DATA_FLAGS=(--data_dir datasets/intermediate/shtech_A/part_1/train"+
		" --val_samples_dir datasets/intermediate/shtech_A/part_1/test)", body[2])
	assert.Equal(t, "LOG_FLAGS=(--log_dir experiments/shtech_A)", body[3])
	assert.Equal(t, `CUDA_VISIBLE_DEVICES=0,1,2,3 python scripts/super_res_train.py`+
		` "${DATA_FLAGS[@]}" "${LOG_FLAGS[@]}" "${TRAIN_FLAGS[@]}" "${MODEL_FLAGS[@]}"`,
		body[len(body)-1])
	assert.Len(t, body, 7)
}

func TestSplitDirective(t *testing.T) {
	var testCases = []struct {
		in   string
		want []string
		err  bool
	}{
		{` -J superres_train`, []string{"-J", "superres_train"}, false},
		{` -R "span[hosts=1]"`, []string{"-R", "span[hosts=1]"}, false},
		{` -gpu "num=4:mode=exclusive_process"   # four cards`, []string{"-gpu", "num=4:mode=exclusive_process"}, false},
		{` -J 'job name'`, []string{"-J", "job name"}, false},
		{` -J "open`, nil, true},
		{` -J "a #b"`, []string{"-J", "a #b"}, false},
		{` -J a#b`, []string{"-J", "a#b"}, false},
		{` -o logs/out_$JOB_ID.log`, []string{"-o", "logs/out_$JOB_ID.log"}, false},
		{` # commented out`, nil, false},
	}
	for _, tc := range testCases {
		got, err := SplitDirective(tc.in)
		if tc.err {
			assert.Error(t, err, tc.in)
			continue
		}
		assert.NoError(t, err, tc.in)
		if len(tc.want) == 0 {
			assert.Empty(t, got, tc.in)
			continue
		}
		assert.Equal(t, tc.want, got, tc.in)
	}
}

func TestWalltimeDuration(t *testing.T) {
	d, err := WalltimeDuration("24:00")
	assert.NoError(t, err)
	assert.Equal(t, 24*time.Hour, d)
	d, err = WalltimeDuration("90")
	assert.NoError(t, err)
	assert.Equal(t, 90*time.Minute, d)
	_, err = WalltimeDuration("1:2:3")
	assert.Error(t, err)
	_, err = WalltimeDuration("")
	assert.Error(t, err)
}

func TestParseJobScript(t *testing.T) {
	script := `#!/bin/bash
#BSUB -J superres_train
#BSUB -R "span[hosts=1]"
# a comment

#BSUB -q gpuv100
module load cuda/11.8
#BSUB -n 2
echo done
`
	jobScript, err := ParseJobScript(LsfDirective, strings.NewReader(script))
	assert.NoError(t, err)
	assert.Equal(t, "/bin/bash", jobScript.Shell)
	assert.Equal(t, [][]string{{"-J", "superres_train"}, {"-R", "span[hosts=1]"}, {"-q", "gpuv100"}}, jobScript.Directives)
	assert.Equal(t, []string{"-J", "superres_train", "-R", "span[hosts=1]", "-q", "gpuv100"}, jobScript.Args())
	assert.Equal(t, "module load cuda/11.8\n#BSUB -n 2\necho done\n", string(jobScript.Script))
	assert.Equal(t, LsfDirective, DetectDirective(strings.NewReader(script)))
	assert.Equal(t, "", DetectDirective(strings.NewReader("echo hi\n")))
}

func TestConfigProfile(t *testing.T) {
	config := DefaultConfig()
	profile, err := config.Profile("")
	assert.NoError(t, err)
	assert.Equal(t, TrainProfile, profile.Name)
	_, err = config.Profile("missing")
	assert.True(t, errors.Is(err, ErrProfileNotFound))
	assert.Equal(t, []string{PreprocessProfile, PreprocessTestProfile, TrainProfile}, config.ProfileNames())
}

func TestConfigRoundTrip(t *testing.T) {
	ctx := context.Background()
	fs := afs.New()
	URL := filepath.Join(t.TempDir(), "config.yaml")

	config, err := ReadConfig(ctx, fs, URL)
	assert.NoError(t, err)
	assert.Equal(t, DefaultConfig().Default, config.Default)

	custom := DefaultTrainProfile()
	custom.Resources.Queue = "gpua100"
	custom.Invocation.Devices = []int{0, 1}
	written := Config{
		Default:  "a100",
		Profiles: map[string]Profile{"a100": custom},
	}
	assert.NoError(t, WriteConfig(ctx, fs, URL, written))

	config, err = ReadConfig(ctx, fs, URL)
	assert.NoError(t, err)
	assert.Equal(t, "a100", config.Default)
	profile, err := config.Profile("")
	assert.NoError(t, err)
	assert.Equal(t, "gpua100", profile.Resources.Queue)
	assert.Equal(t, "0,1", profile.Invocation.DeviceList())
	assert.Equal(t, trainFlagString, profile.Invocation.FlagString())
	// built-ins remain available
	_, err = config.Profile(PreprocessProfile)
	assert.NoError(t, err)
}

func TestConfigUnknownDefault(t *testing.T) {
	ctx := context.Background()
	fs := afs.New()
	URL := filepath.Join(t.TempDir(), "config.yaml")
	assert.NoError(t, WriteConfig(ctx, fs, URL, Config{Default: "nope"}))
	_, err := ReadConfig(ctx, fs, URL)
	assert.Error(t, err)
}

func TestConfigUnreachable(t *testing.T) {
	_, err := ReadConfig(context.Background(), afs.New(), "nosuchscheme://bucket/config.yaml")
	assert.Error(t, err)
}

func TestDecodeMemory(t *testing.T) {
	var testCases = []struct {
		in   string
		want int
		err  bool
	}{
		{"8GB", 8192, false},
		{"8G", 8192, false},
		{"16gb", 16384, false},
		{"512", 512, false},
		{"512MB", 512, false},
		{"1T", 1048576, false},
		{"1500K", 2, false},
		{"GB", 0, true},
		{"8 GB", 0, true},
		{"8XB", 0, true},
	}
	for _, tc := range testCases {
		got, err := DecodeMemory(tc.in)
		if tc.err {
			assert.Error(t, err, tc.in)
			continue
		}
		assert.NoError(t, err, tc.in)
		assert.Equal(t, tc.want, got, tc.in)
	}
}

func TestResourcesDiff(t *testing.T) {
	res := DefaultTrainProfile().Resources
	assert.Empty(t, res.Diff(res))

	other := res
	other.Memory = "8192"
	other.Walltime = "1440"
	assert.Empty(t, res.Diff(other))

	other.Queue = "gpua100"
	other.Gpus = 2
	assert.Equal(t, []string{`gpus: "4" -> "2"`, `queue: "gpuv100" -> "gpua100"`}, res.Diff(other))
}
