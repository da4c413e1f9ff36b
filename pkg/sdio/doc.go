/*
Package sdio drives an SD card sitting behind the I/O coprocessor's SD host
("/dev/sdio/slot0").

# Session

A Driver owns one session with the slot: an ios.Heap for DMA-safe
descriptors, the open channel, and the card's relative address (RCA).
Startup brings the card up; Shutdown releases everything. The Driver has no
internal locking, callers serialize access.

# Bring-up

Startup performs, in order:

 1. RESETCARD: the host resets the card and returns its RCA in the upper
    half of a 32-bit status word.
 2. Host bus width 4: read-modify-write of HOSTCONTROL (0x28), bit 0x02.
 3. SETCLK 1.
 4. CMD7 with the RCA: select the card (stby -> tran).
 5. CMD16 512: set the block length.
 6. CMD55 + ACMD6 2: switch the card to the 4-bit bus.
 7. CMD7 with RCA 0: deselect (tran -> stby).

A failure in steps 1 to 4 aborts immediately. A failure in step 5 or 6
deselects the card before giving up. There are no retries.

# Transfers

Every ReadSectors/WriteSectors call selects the card, moves each sector as
its own single-block exchange through a 512-byte staging buffer taken from
the heap, then deselects. Caller memory is never handed to the coprocessor.
The sector is converted to a byte address on the wire.
*/
package sdio
