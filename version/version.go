package version

// BuildVersion contains the version of the keylightd binary. Set at build time.
var BuildVersion = "change-me"
