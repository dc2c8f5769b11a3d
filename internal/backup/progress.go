package backup

// Progress receives notifications while an archive is assembled.
type Progress interface {
	Start(title string, total int)
	Entry(name string, stored bool)
	Finish()
}

// NopProgress discards all notifications.
type NopProgress struct{}

func (NopProgress) Start(string, int)  {}
func (NopProgress) Entry(string, bool) {}
func (NopProgress) Finish()            {}
