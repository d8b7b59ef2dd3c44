package install

import "stagehand/internal/registry"

// RunRecord converts an engine result into registry rows for run history.
// jobID is zero for direct CLI installs with no daemon job attached.
func RunRecord(result *Result, jobID int64) (*registry.Run, []*registry.RunFile) {
	if result == nil {
		return nil, nil
	}
	finished := result.StartedAt.Add(result.Duration)
	run := &registry.Run{
		ID:             result.RunID,
		JobID:          jobID,
		PlanName:       result.PlanName,
		PlanVersion:    result.PlanVersion,
		Configuration:  result.Configuration.String(),
		Component:      result.Component,
		Prefix:         result.Prefix,
		DestDir:        result.DestDir,
		InstalledCount: result.InstalledCount,
		UpToDateCount:  result.UpToDateCount,
		SkippedCount:   result.SkippedCount,
		TotalBytes:     result.TotalBytes,
		Status:         registry.RunStatusCompleted,
		StartedAt:      result.StartedAt,
		FinishedAt:     &finished,
	}

	files := make([]*registry.RunFile, 0, len(result.Files))
	for _, file := range result.Files {
		files = append(files, &registry.RunFile{
			RunID:     result.RunID,
			Path:      file.Path,
			Size:      file.Size,
			SHA256:    file.SHA256,
			Mode:      uint32(file.Action.Mode.Perm()),
			Action:    file.Outcome,
			Kind:      string(file.Action.Kind),
			Component: file.Action.Component,
		})
	}
	return run, files
}
