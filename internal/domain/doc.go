// Package domain contains the song request submitted for generation and the
// validation rules it must satisfy before a task is created. It is independent
// of any transport or storage concern.
package domain
