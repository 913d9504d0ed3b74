package enumerate

import (
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	psUtil "github.com/shirou/gopsutil/process"
	"go.uber.org/zap"
	"gopkg.in/guregu/null.v3"

	"github.com/procpulse/agent/internal/types"
)

// Reading is one process as seen at a single enumeration pass. Every
// field except the identity pair may be unreadable under OS permission
// restrictions; unreadable fields are left invalid and Partial is set.
type Reading struct {
	Pid        types.Pid
	CreateTime float64
	CPUTime    null.Float // cumulative user+system cpu seconds

	Name     null.String
	ExePath  null.String
	Cmdline  null.String
	Username null.String
	Ppid     null.Int

	RssBytes     null.Int
	VmsBytes     null.Int
	IOReadBytes  null.Int
	IOWriteBytes null.Int

	Partial bool
}

func (r *Reading) Key() types.SessionKey {
	return types.SessionKey{Pid: r.Pid, CreateTime: r.CreateTime}
}

type Enumerator interface {
	Snapshot() ([]Reading, error)
}

type Config struct {
	CollectMemory bool
	CollectIO     bool
}

type ProcessEnumerator struct {
	logger *zap.Logger
	config *Config
}

func NewProcessEnumerator(rootLogger *zap.Logger, config *Config) *ProcessEnumerator {
	return &ProcessEnumerator{
		logger: rootLogger.Named("process-enumerator"),
		config: config,
	}
}

func (e *ProcessEnumerator) Snapshot() ([]Reading, error) {
	liveProcesses, err := psUtil.Processes()
	if err != nil {
		return nil, errors.WithMessage(err, "get live process list")
	}

	readings := make([]Reading, 0, len(liveProcesses))

	var errs error

	for _, liveProcess := range liveProcesses {
		createTimeMilliseconds, err := liveProcess.CreateTime()
		if err != nil {
			// Identity is unreadable, commonly a process that exited
			// mid-enumeration. Omit it from this pass entirely.
			errs = multierror.Append(errs, errors.WithMessagef(err, "get create time for pid '%d'",
				liveProcess.Pid))
			continue
		}

		reading := Reading{
			Pid:        types.Pid(liveProcess.Pid),
			CreateTime: types.EpochSecondsFromMilliseconds(createTimeMilliseconds),
		}

		if cpuTimes, err := liveProcess.Times(); err != nil {
			reading.Partial = true
		} else {
			reading.CPUTime = null.FloatFrom(cpuTimes.User + cpuTimes.System)
		}

		if name, err := liveProcess.Name(); err != nil {
			reading.Partial = true
		} else if name != "" {
			reading.Name = null.StringFrom(name)
		}

		if executable, err := liveProcess.Exe(); err != nil {
			reading.Partial = true
		} else if executable != "" {
			reading.ExePath = null.StringFrom(executable)
		}

		if cmdLine, err := liveProcess.Cmdline(); err != nil {
			reading.Partial = true
		} else if cmdLine != "" {
			reading.Cmdline = null.StringFrom(cmdLine)
		}

		if username, err := liveProcess.Username(); err != nil {
			reading.Partial = true
		} else if username != "" {
			reading.Username = null.StringFrom(username)
		}

		if ppid, err := liveProcess.Ppid(); err != nil {
			reading.Partial = true
		} else {
			reading.Ppid = null.IntFrom(int64(ppid))
		}

		if e.config.CollectMemory {
			if memoryInfo, err := liveProcess.MemoryInfo(); err != nil || memoryInfo == nil {
				reading.Partial = true
			} else {
				reading.RssBytes = null.IntFrom(int64(memoryInfo.RSS))
				reading.VmsBytes = null.IntFrom(int64(memoryInfo.VMS))
			}
		}

		if e.config.CollectIO {
			if ioCounters, err := liveProcess.IOCounters(); err != nil || ioCounters == nil {
				reading.Partial = true
			} else {
				reading.IOReadBytes = null.IntFrom(int64(ioCounters.ReadBytes))
				reading.IOWriteBytes = null.IntFrom(int64(ioCounters.WriteBytes))
			}
		}

		readings = append(readings, reading)
	}

	if len(readings) == 0 && errs != nil {
		return nil, errs
	}

	if errs != nil {
		e.logger.Debug("Some processes were unreadable during enumeration", zap.Error(errs))
	}

	return readings, nil
}
