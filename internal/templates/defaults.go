package templates

import "sort"

// Defaults are written to an empty template directory on first use.
var Defaults = map[string]map[string]string{
	"Quick CPU Job": {
		"mode":      "sbatch",
		"name":      "quick-test",
		"partition": "",
		"time":      "00:30:00",
		"nodes":     "1",
		"ntasks":    "1",
		"cpus":      "1",
		"memory":    "4G",
		"gpus":      "",
		"script":    "",
		"output":    "%x-%j.out",
		"error":     "%x-%j.err",
		"modules":   "",
		"env":       "",
		"init":      "",
	},
	"Multi-Node MPI": {
		"mode":      "sbatch",
		"name":      "mpi-job",
		"partition": "",
		"time":      "04:00:00",
		"nodes":     "4",
		"ntasks":    "16",
		"cpus":      "1",
		"memory":    "8G",
		"gpus":      "",
		"script":    "",
		"output":    "%x-%j.out",
		"error":     "%x-%j.err",
		"modules":   "openmpi",
		"env":       "",
		"init":      "srun ./my_mpi_program",
	},
	"Single GPU Training": {
		"mode":      "sbatch",
		"name":      "gpu-training",
		"partition": "",
		"time":      "08:00:00",
		"nodes":     "1",
		"ntasks":    "1",
		"cpus":      "4",
		"memory":    "32G",
		"gpus":      "1",
		"script":    "",
		"output":    "%x-%j.out",
		"error":     "%x-%j.err",
		"modules":   "cuda\npython",
		"env":       "",
		"init":      "python train.py",
	},
	"Large Memory Job": {
		"mode":      "sbatch",
		"name":      "highmem-job",
		"partition": "",
		"time":      "12:00:00",
		"nodes":     "1",
		"ntasks":    "1",
		"cpus":      "8",
		"memory":    "128G",
		"gpus":      "",
		"script":    "",
		"output":    "%x-%j.out",
		"error":     "%x-%j.err",
		"modules":   "",
		"env":       "",
		"init":      "",
	},
	"Interactive Session": {
		"mode":      "srun",
		"name":      "",
		"partition": "",
		"time":      "01:00:00",
		"nodes":     "1",
		"ntasks":    "1",
		"cpus":      "2",
		"memory":    "8G",
		"gpus":      "",
		"script":    "",
		"output":    "",
		"error":     "",
		"modules":   "",
		"env":       "",
		"init":      "",
	},
}

// DefaultNames returns the built-in template names, sorted.
func DefaultNames() []string {
	names := make([]string, 0, len(Defaults))
	for name := range Defaults {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
