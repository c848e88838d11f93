package core

// Default constants for the super-resolution training job
const (
	DefaultInterpreter = "python"
	TrainScript        = "scripts/super_res_train.py"
	PreprocessScript   = "cc_utils/preprocess_shtech.py"
	DefaultModule      = "cuda/11.8"
	DefaultVenv        = "venv/crowddiff"
	DefaultQueue       = "gpuv100"
	DefaultDataset     = "shtech_A"
)

// Flag group names, in invocation order
const (
	DataGroup  = "data"
	LogGroup   = "log"
	TrainGroup = "train"
	ModelGroup = "model"
	// preprocessing stage
	DatasetGroup = "dataset"
	DensityGroup = "density"
)

// Devices visible to the training process
var DefaultDevices = []int{0, 1, 2, 3}

func DefaultTrainProfile() Profile {
	return Profile{
		Name: TrainProfile,
		Resources: Resources{
			JobName:    "superres_train",
			OutputFile: "logs/superres_train_%J.out",
			ErrorFile:  "logs/superres_train_%J.err",
			Cores:      8,
			SpanHosts:  1,
			Memory:     "8GB",
			GpuSelect:  "gpu32gb",
			Gpus:       4,
			GpuMode:    "exclusive_process",
			Walltime:   "24:00",
			Queue:      DefaultQueue,
		},
		Environment: Environment{
			Modules: []string{DefaultModule},
			Venv:    DefaultVenv,
		},
		Invocation: Invocation{
			Interpreter: DefaultInterpreter,
			Script:      TrainScript,
			Devices:     append([]int(nil), DefaultDevices...),
			Groups: []FlagGroup{
				{
					Name: DataGroup,
					Flags: []Flag{
						{Name: "data_dir", Value: "datasets/intermediate/shtech_A/part_1/train"},
						{Name: "val_samples_dir", Value: "datasets/intermediate/shtech_A/part_1/test"},
					},
				},
				{
					Name: LogGroup,
					Flags: []Flag{
						{Name: "log_dir", Value: "experiments/shtech_A"},
					},
				},
				{
					Name: TrainGroup,
					Flags: []Flag{
						{Name: "normalizer", Value: "0.8"},
						{Name: "pred_channels", Value: "1"},
						{Name: "batch_size", Value: "8"},
						{Name: "save_interval", Value: "10000"},
						{Name: "lr", Value: "1e-4"},
					},
				},
				{
					Name: ModelGroup,
					Flags: []Flag{
						{Name: "attention_resolutions", Value: "32,16,8"},
						{Name: "class_cond", Value: "False"},
						{Name: "diffusion_steps", Value: "1000"},
						{Name: "large_size", Value: "256"},
						{Name: "small_size", Value: "256"},
						{Name: "learn_sigma", Value: "True"},
						{Name: "noise_schedule", Value: "linear"},
						{Name: "num_channels", Value: "192"},
						{Name: "num_head_channels", Value: "64"},
						{Name: "num_res_blocks", Value: "2"},
						{Name: "resblock_updown", Value: "True"},
						{Name: "use_fp16", Value: "True"},
						{Name: "use_scale_shift_norm", Value: "True"},
					},
				},
			},
		},
	}
}

// DefaultPreprocessProfile crops the raw training images into one part per
// training device and writes the density maps next to the images.
// Preprocessing runs on the CPU: no GPU is reserved or made visible.
func DefaultPreprocessProfile() Profile {
	return preprocessProfile(PreprocessProfile, "train")
}

// DefaultPreprocessTestProfile prepares the test split read back as
// validation samples by the train profile
func DefaultPreprocessTestProfile() Profile {
	return preprocessProfile(PreprocessTestProfile, "test")
}

func preprocessProfile(name, mode string) Profile {
	job := "superres_" + name
	return Profile{
		Name: name,
		Resources: Resources{
			JobName:    job,
			OutputFile: "logs/" + job + "_%J.out",
			ErrorFile:  "logs/" + job + "_%J.err",
			Cores:      4,
			SpanHosts:  1,
			Memory:     "16GB",
			Walltime:   "2:00",
		},
		Environment: Environment{
			Modules: []string{DefaultModule},
			Venv:    DefaultVenv,
		},
		Invocation: Invocation{
			Interpreter: DefaultInterpreter,
			Script:      PreprocessScript,
			Groups: []FlagGroup{
				{
					Name: DatasetGroup,
					Flags: []Flag{
						{Name: "dataset", Value: DefaultDataset},
						{Name: "data_dir", Value: "primary_datasets/"},
						{Name: "mode", Value: mode},
						{Name: "output_dir", Value: "datasets/intermediate"},
					},
				},
				{
					Name: DensityGroup,
					Flags: []Flag{
						{Name: "kernel_size", Value: "1 3 5"},
						{Name: "sigma", Value: "0.5 1 2"},
						{Name: "image_size", Value: "256"},
						{Name: "ndevices", Value: "4"},
						{Name: "with_density", Switch: true},
					},
				},
			},
		},
	}
}

func DefaultConfig() Config {
	return Config{
		Default: TrainProfile,
		Profiles: map[string]Profile{
			TrainProfile:          DefaultTrainProfile(),
			PreprocessProfile:     DefaultPreprocessProfile(),
			PreprocessTestProfile: DefaultPreprocessTestProfile(),
		},
	}
}
