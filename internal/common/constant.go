package common

// AuthHeaderName is the HTTP header used to carry the access token on
// outbound API requests.
const AuthHeaderName = "Authorization"

// LegacyAudioPlaceholder is the literal, never-substituted template suffix
// older client builds wrote into audio file names and event metadata.
// Files carrying it are renamed to AudioExtension before packaging.
const LegacyAudioPlaceholder = ".$fileExtension"

// AudioExtension is the container extension the recorder actually produces.
const AudioExtension = ".m4a"
