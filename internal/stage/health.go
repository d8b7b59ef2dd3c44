package stage

// Health reports whether a stage's dependencies are usable. Handlers return
// one per HealthCheck call and the daemon caches the latest set for status.
type Health struct {
	Name   string
	Ready  bool
	Detail string
}

// Healthy reports a stage whose dependencies are all usable.
func Healthy(name string) Health {
	return Health{Name: name, Ready: true}
}

// Unhealthy reports a stage that cannot run, with the reason in Detail.
func Unhealthy(name, detail string) Health {
	return Health{Name: name, Detail: detail}
}
