package sandbox

import (
	"context"
	"regexp"
	"strconv"
	"strings"
	"time"

	"mlagent/internal/dataset"
)

var timeoutPattern = regexp.MustCompile(`^Execution timed out after \d+ seconds`)

// preamble runs once per session before any user fragment. Analysis
// libraries are imported eagerly so generated code can assume them.
const preamble = `import pandas as pd
import numpy as np
import matplotlib
matplotlib.use("Agg")
import matplotlib.pyplot as plt
try:
    import seaborn as sns
except ImportError:
    pass
`

// InjectionCode 生成把数据集装载进命名空间的引导代码
// InjectionCode renders the bootstrap fragment that loads each resolved
// dataset into the namespace under its binding name, with a companion
// <name>_path variable holding the source file path.
func InjectionCode(bindings []dataset.Binding) string {
	var b strings.Builder
	b.WriteString(preamble)
	for _, bind := range bindings {
		path := strconv.Quote(bind.Path)
		b.WriteString(bind.PathVar + " = " + path + "\n")
		b.WriteString(bind.Name + " = pd.read_csv(" + bind.PathVar + ")\n")
	}
	return b.String()
}

// Inject runs the bootstrap fragment for the given bindings. Like any
// other fragment, failures come back in the Result.
func (s *Session) Inject(ctx context.Context, bindings []dataset.Binding, timeout time.Duration) Result {
	return s.Execute(ctx, InjectionCode(bindings), timeout)
}
