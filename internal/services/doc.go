// Package services defines the shared error taxonomy for stage collaborators
// and hosts the collaborator implementations (scraper, tts, converter,
// syncer). Stage handlers classify errors through this package to decide
// between retrying, failing the unit, backing off on contention, or releasing
// the task for redelivery.
package services
