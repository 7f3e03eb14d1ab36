package vulkan

import (
	"fmt"
	"os"
	"os/exec"

	"github.com/sirupsen/logrus"
)

// PostProcess runs the optional external SPIR-V tooling over a generated
// module: spirv-val when validation is enabled and spirv-opt when
// optimization is requested. Missing tools are skipped silently; a failing
// validator is a compile error. The (possibly replaced) byte stream is
// returned.
func PostProcess(module []uint32, cfg Config) ([]byte, error) {
	data := wordsToBytes(module)
	if !cfg.SkipValidate {
		if path, err := exec.LookPath("spirv-val"); err == nil {
			if err := runValidator(path, data); err != nil {
				return nil, err
			}
		}
	}
	if cfg.Optimize {
		if path, err := exec.LookPath("spirv-opt"); err == nil {
			out, err := runOptimizer(path, data)
			if err != nil {
				logrus.WithError(err).Warn("spirv-opt failed, keeping unoptimized module")
			} else {
				data = out
			}
		}
	}
	return data, nil
}

func wordsToBytes(words []uint32) []byte {
	buf := make([]byte, len(words)*4)
	for i, w := range words {
		buf[i*4] = byte(w)
		buf[i*4+1] = byte(w >> 8)
		buf[i*4+2] = byte(w >> 16)
		buf[i*4+3] = byte(w >> 24)
	}
	return buf
}

func runValidator(path string, module []byte) error {
	f, err := os.CreateTemp("", "wyvern-*.spv")
	if err != nil {
		return err
	}
	defer os.Remove(f.Name())
	if _, err := f.Write(module); err != nil {
		f.Close()
		return err
	}
	f.Close()
	out, err := exec.Command(path, f.Name()).CombinedOutput()
	if err != nil {
		return fmt.Errorf("spirv-val rejected module: %s", out)
	}
	logrus.Debug("spirv-val passed")
	return nil
}

func runOptimizer(path string, module []byte) ([]byte, error) {
	in, err := os.CreateTemp("", "wyvern-*.spv")
	if err != nil {
		return nil, err
	}
	defer os.Remove(in.Name())
	if _, err := in.Write(module); err != nil {
		in.Close()
		return nil, err
	}
	in.Close()
	out, err := os.CreateTemp("", "wyvern-opt-*.spv")
	if err != nil {
		return nil, err
	}
	outName := out.Name()
	out.Close()
	defer os.Remove(outName)
	if msg, err := exec.Command(path, "-O", in.Name(), "-o", outName).CombinedOutput(); err != nil {
		return nil, fmt.Errorf("spirv-opt: %s", msg)
	}
	return os.ReadFile(outName)
}
