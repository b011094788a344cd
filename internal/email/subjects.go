package email

const (
	subjectBookingAssignedFmt = "New booking assigned: %s"
	subjectSLABreachedFmt     = "Response overdue: booking %s (%s)"
	subjectInvoiceFmt         = "Invoice %s"
)
